package domain

import (
	"github.com/yungbote/promptlab-backend/internal/domain/prompts"
)

type PromptState = prompts.PromptState

const (
	PromptStateActive  = prompts.PromptStateActive
	PromptStateDeleted = prompts.PromptStateDeleted
)

type Prompt = prompts.Prompt
type PromptVersion = prompts.PromptVersion
type PromptVersionSummary = prompts.PromptVersionSummary

type VersionKind = prompts.VersionKind
type VersionEvent = prompts.VersionEvent

const (
	EventVersionCommitted = prompts.EventVersionCommitted
	VersionKindCreate     = prompts.VersionKindCreate
	VersionKindUpdate     = prompts.VersionKindUpdate
	VersionKindRollback   = prompts.VersionKindRollback
)

var NewVersionEvent = prompts.NewVersionEvent
