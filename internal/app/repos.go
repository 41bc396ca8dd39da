package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/promptlab-backend/internal/data/repos"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

type Repos struct {
	Prompt        repos.PromptRepo
	PromptVersion repos.PromptVersionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Prompt:        repos.NewPromptRepo(db, log),
		PromptVersion: repos.NewPromptVersionRepo(db, log),
	}
}
