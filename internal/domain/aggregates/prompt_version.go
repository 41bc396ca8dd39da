package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/promptlab-backend/internal/domain/prompts"
)

const (
	OpCreatePrompt      = "Prompts.PromptVersion.CreatePrompt"
	OpCommitVersion     = "Prompts.PromptVersion.CommitVersion"
	OpRollbackToVersion = "Prompts.PromptVersion.RollbackToVersion"
	OpSoftDeletePrompt  = "Prompts.PromptVersion.SoftDeletePrompt"
)

var PromptVersionAggregateContract = Contract{
	Name:             "Prompts.PromptVersionAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Operations:       []string{OpCreatePrompt, OpCommitVersion, OpRollbackToVersion, OpSoftDeletePrompt},
	Notes:            "Owns next-number allocation, demotion of the current version and append as one atomic unit per prompt.",
}

// PromptVersionAggregate owns the version history invariants of a prompt.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
// A failed write leaves no partial state.
type PromptVersionAggregate interface {
	Aggregate

	// CreatePrompt creates the prompt identity and its version 1 as current.
	CreatePrompt(ctx context.Context, in CreatePromptInput) (CommitVersionResult, error)

	// CommitVersion appends the next version with the given content and makes it current.
	CommitVersion(ctx context.Context, in CommitVersionInput) (CommitVersionResult, error)

	// RollbackToVersion copies the content of an existing version into a new current version.
	RollbackToVersion(ctx context.Context, in RollbackVersionInput) (CommitVersionResult, error)

	// SoftDeletePrompt transitions an active prompt to the deleted state.
	SoftDeletePrompt(ctx context.Context, in SoftDeletePromptInput) (SoftDeletePromptResult, error)
}

type CreatePromptInput struct {
	PromptID      uuid.UUID
	Content       string
	CreatedBy     *string
	ChangeSummary *string
	CreatedAt     time.Time
}

type CommitVersionInput struct {
	PromptID      uuid.UUID
	Content       string
	CreatedBy     *string
	ChangeSummary *string
	CreatedAt     time.Time
}

type RollbackVersionInput struct {
	PromptID      uuid.UUID
	TargetVersion int
	CreatedBy     *string
	ChangeSummary *string
	CreatedAt     time.Time
}

type CommitVersionResult struct {
	Version        *prompts.PromptVersion
	DemotedID      uuid.UUID
	DemotedVersion int
	CreatedPrompt  bool
	RolledBackFrom int
}

type SoftDeletePromptInput struct {
	PromptID  uuid.UUID
	DeletedAt time.Time
}

type SoftDeletePromptResult struct {
	PromptID  uuid.UUID
	State     prompts.PromptState
	DeletedAt time.Time
}
