package repos

import (
	"github.com/yungbote/promptlab-backend/internal/data/repos/prompts"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type PromptRepo = prompts.PromptRepo
type PromptVersionRepo = prompts.PromptVersionRepo

func NewPromptRepo(db *gorm.DB, baseLog *logger.Logger) PromptRepo {
	return prompts.NewPromptRepo(db, baseLog)
}

func NewPromptVersionRepo(db *gorm.DB, baseLog *logger.Logger) PromptVersionRepo {
	return prompts.NewPromptVersionRepo(db, baseLog)
}
