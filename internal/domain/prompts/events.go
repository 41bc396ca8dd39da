package prompts

import (
	"time"

	"github.com/google/uuid"
)

const EventVersionCommitted = "version.committed"

// VersionKind says which write produced a version.
type VersionKind string

const (
	VersionKindCreate   VersionKind = "create"
	VersionKindUpdate   VersionKind = "update"
	VersionKindRollback VersionKind = "rollback"
)

// VersionEvent is published after a version commits. It carries no content.
type VersionEvent struct {
	Type           string      `json:"type"`
	Kind           VersionKind `json:"kind"`
	PromptID       uuid.UUID   `json:"prompt_id"`
	VersionID      uuid.UUID   `json:"version_id"`
	VersionNumber  int         `json:"version_number"`
	DemotedVersion int         `json:"demoted_version,omitempty"`
	RolledBackFrom int         `json:"rolled_back_from,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// NewVersionEvent describes v as a committed event. It returns the zero value for nil v.
func NewVersionEvent(kind VersionKind, v *PromptVersion, demoted int) VersionEvent {
	if v == nil {
		return VersionEvent{}
	}
	ev := VersionEvent{
		Type:           EventVersionCommitted,
		Kind:           kind,
		PromptID:       v.PromptID,
		VersionID:      v.ID,
		VersionNumber:  v.VersionNumber,
		DemotedVersion: demoted,
		OccurredAt:     v.CreatedAt,
	}
	if v.RolledBackFrom != nil {
		ev.RolledBackFrom = *v.RolledBackFrom
	}
	return ev
}
