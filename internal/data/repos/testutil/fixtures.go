package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/promptlab-backend/internal/domain"
	"gorm.io/gorm"
)

func SeedPrompt(tb testing.TB, ctx context.Context, tx *gorm.DB, state types.PromptState) *types.Prompt {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.Prompt{
		ID:        uuid.New(),
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if state == types.PromptStateDeleted {
		p.DeletedAt = PtrTime(now)
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed prompt: %v", err)
	}
	return p
}

// SeedVersion inserts a version row directly, bypassing the sequencer.
func SeedVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, promptID uuid.UUID, number int, content string, current bool) *types.PromptVersion {
	tb.Helper()
	v := &types.PromptVersion{
		ID:            uuid.New(),
		PromptID:      promptID,
		VersionNumber: number,
		Content:       content,
		IsCurrent:     current,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Omit("Prompt").Create(v).Error; err != nil {
		tb.Fatalf("seed prompt version: %v", err)
	}
	return v
}

func PtrString(v string) *string { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
