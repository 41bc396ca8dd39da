package aggregates

import (
	"github.com/google/uuid"

	"github.com/yungbote/promptlab-backend/internal/data/repos"
	"github.com/yungbote/promptlab-backend/internal/platform/dbctx"
)

// SequenceSlot is the sequencer's view of a prompt at the start of a write.
type SequenceSlot struct {
	// Next is max(version_number)+1, or 1 for a prompt without versions.
	Next int
	// CurrentID and CurrentNumber describe the current version seen by the
	// sequencer; both are zero when no current version exists.
	CurrentID     uuid.UUID
	CurrentNumber int
}

func (s SequenceSlot) HasCurrent() bool {
	return s.CurrentID != uuid.Nil
}

// Sequencer computes the next version number for a prompt. It must run inside
// the write transaction; it never reserves the number, the unique index on
// (prompt_id, version_number) does.
type Sequencer interface {
	Next(dbc dbctx.Context, promptID uuid.UUID) (SequenceSlot, error)
}

type repoSequencer struct {
	versions repos.PromptVersionRepo
}

func NewSequencer(versions repos.PromptVersionRepo) Sequencer {
	return &repoSequencer{versions: versions}
}

func (s *repoSequencer) Next(dbc dbctx.Context, promptID uuid.UUID) (SequenceSlot, error) {
	var slot SequenceSlot
	if s == nil || s.versions == nil {
		return slot, InvariantError("sequencer has no version repo")
	}
	max, err := s.versions.GetMaxVersionNumber(dbc, promptID)
	if err != nil {
		return slot, err
	}
	slot.Next = max + 1

	cur, err := s.versions.GetCurrent(dbc, promptID)
	if err != nil {
		return slot, err
	}
	if cur != nil {
		slot.CurrentID = cur.ID
		slot.CurrentNumber = cur.VersionNumber
	}
	return slot, nil
}
