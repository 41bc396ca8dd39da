package db

import (
	"fmt"

	types "github.com/yungbote/promptlab-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Prompt{},
		&types.PromptVersion{},
	); err != nil {
		return err
	}
	return EnsurePromptVersionIndexes(db)
}

// EnsurePromptVersionIndexes creates the partial unique index that allows at
// most one current version per prompt. The syntax is shared by Postgres and SQLite.
func EnsurePromptVersionIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_prompt_version_current
		ON prompt_version (prompt_id)
		WHERE is_current;
	`).Error; err != nil {
		return fmt.Errorf("create idx_prompt_version_current: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_prompt_version_prompt_created_at
		ON prompt_version (prompt_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_prompt_version_prompt_created_at: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
