package prompts

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PromptState is the lifecycle tag of a prompt.
type PromptState string

const (
	PromptStateActive  PromptState = "active"
	PromptStateDeleted PromptState = "deleted"
)

// Normalize lowercases and trims the state; unknown values are returned as-is.
func (s PromptState) Normalize() PromptState {
	return PromptState(strings.ToLower(strings.TrimSpace(string(s))))
}

// Readable reports whether versions of a prompt in this state may be served or appended.
func (s PromptState) Readable() bool {
	return s.Normalize() == PromptStateActive
}

// Prompt is the stable identity a version history hangs off of.
// It never holds content; content lives exclusively in PromptVersion rows.
type Prompt struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// active|deleted
	State PromptState `gorm:"column:state;type:text;not null;index" json:"state"`

	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (Prompt) TableName() string { return "prompt" }
