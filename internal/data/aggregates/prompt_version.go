package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/promptlab-backend/internal/data/repos"
	types "github.com/yungbote/promptlab-backend/internal/domain"
	domainagg "github.com/yungbote/promptlab-backend/internal/domain/aggregates"
	"github.com/yungbote/promptlab-backend/internal/platform/dbctx"
)

type PromptVersionAggregateDeps struct {
	Base BaseDeps

	Prompts  repos.PromptRepo
	Versions repos.PromptVersionRepo
	// Sequencer defaults to one backed by Versions.
	Sequencer Sequencer
}

type promptVersionAggregate struct {
	deps PromptVersionAggregateDeps
}

func NewPromptVersionAggregate(deps PromptVersionAggregateDeps) domainagg.PromptVersionAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Sequencer == nil && deps.Versions != nil {
		deps.Sequencer = NewSequencer(deps.Versions)
	}
	return &promptVersionAggregate{deps: deps}
}

func (a *promptVersionAggregate) Contract() domainagg.Contract {
	return domainagg.PromptVersionAggregateContract
}

func (a *promptVersionAggregate) configured() bool {
	return a.deps.Prompts != nil && a.deps.Versions != nil && a.deps.Sequencer != nil
}

func (a *promptVersionAggregate) CreatePrompt(ctx context.Context, in domainagg.CreatePromptInput) (domainagg.CommitVersionResult, error) {
	const op = domainagg.OpCreatePrompt
	var out domainagg.CommitVersionResult
	if strings.TrimSpace(in.Content) == "" {
		return out, domainagg.Validation(op, "content must not be empty")
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "prompt version aggregate repos not configured", nil)
	}

	at := writeTime(in.CreatedAt)
	promptID := in.PromptID
	if promptID == uuid.Nil {
		promptID = uuid.New()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.deps.Prompts.Create(dbc, []*types.Prompt{{
			ID:        promptID,
			State:     types.PromptStateActive,
			CreatedAt: at,
			UpdatedAt: at,
		}}); err != nil {
			return err
		}
		res, err := a.appendNext(dbc, promptID, appendInput{
			content:       in.Content,
			createdBy:     in.CreatedBy,
			changeSummary: in.ChangeSummary,
			at:            at,
		})
		if err != nil {
			return err
		}
		if res.Version.VersionNumber != 1 {
			return InvariantError("new prompt started at version %d", res.Version.VersionNumber)
		}
		res.CreatedPrompt = true
		out = res
		return nil
	})
	if err != nil {
		return domainagg.CommitVersionResult{}, err
	}
	return out, nil
}

func (a *promptVersionAggregate) CommitVersion(ctx context.Context, in domainagg.CommitVersionInput) (domainagg.CommitVersionResult, error) {
	const op = domainagg.OpCommitVersion
	var out domainagg.CommitVersionResult
	if in.PromptID == uuid.Nil {
		return out, domainagg.Validation(op, "missing prompt_id")
	}
	if strings.TrimSpace(in.Content) == "" {
		return out, domainagg.Validation(op, "content must not be empty")
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "prompt version aggregate repos not configured", nil)
	}

	at := writeTime(in.CreatedAt)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.requireActivePrompt(dbc, op, in.PromptID); err != nil {
			return err
		}
		res, err := a.appendNext(dbc, in.PromptID, appendInput{
			content:       in.Content,
			createdBy:     in.CreatedBy,
			changeSummary: in.ChangeSummary,
			at:            at,
		})
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return domainagg.CommitVersionResult{}, err
	}
	return out, nil
}

func (a *promptVersionAggregate) RollbackToVersion(ctx context.Context, in domainagg.RollbackVersionInput) (domainagg.CommitVersionResult, error) {
	const op = domainagg.OpRollbackToVersion
	var out domainagg.CommitVersionResult
	if in.PromptID == uuid.Nil {
		return out, domainagg.Validation(op, "missing prompt_id")
	}
	if in.TargetVersion <= 0 {
		return out, domainagg.Validation(op, "version number must be positive, got %d", in.TargetVersion)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "prompt version aggregate repos not configured", nil)
	}

	at := writeTime(in.CreatedAt)
	summary := in.ChangeSummary
	if summary == nil || strings.TrimSpace(*summary) == "" {
		s := RollbackSummary(in.TargetVersion)
		summary = &s
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.requireActivePrompt(dbc, op, in.PromptID); err != nil {
			return err
		}
		target, err := a.deps.Versions.GetByNumber(dbc, in.PromptID, in.TargetVersion)
		if err != nil {
			return err
		}
		if target == nil {
			return domainagg.NotFound(op, "version %d of prompt %s not found", in.TargetVersion, in.PromptID)
		}
		from := target.VersionNumber
		res, err := a.appendNext(dbc, in.PromptID, appendInput{
			content:        target.Content,
			createdBy:      in.CreatedBy,
			changeSummary:  summary,
			rolledBackFrom: &from,
			at:             at,
		})
		if err != nil {
			return err
		}
		res.RolledBackFrom = from
		out = res
		return nil
	})
	if err != nil {
		return domainagg.CommitVersionResult{}, err
	}
	return out, nil
}

func (a *promptVersionAggregate) SoftDeletePrompt(ctx context.Context, in domainagg.SoftDeletePromptInput) (domainagg.SoftDeletePromptResult, error) {
	const op = domainagg.OpSoftDeletePrompt
	var out domainagg.SoftDeletePromptResult
	if in.PromptID == uuid.Nil {
		return out, domainagg.Validation(op, "missing prompt_id")
	}
	if a.deps.Prompts == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "prompt repo not configured", nil)
	}

	at := writeTime(in.DeletedAt)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.requireActivePrompt(dbc, op, in.PromptID); err != nil {
			return err
		}
		ok, err := a.deps.Prompts.TransitionState(dbc, in.PromptID, types.PromptStateActive, types.PromptStateDeleted, at)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "prompt state changed while deleting"); err != nil {
			return err
		}
		out = domainagg.SoftDeletePromptResult{
			PromptID:  in.PromptID,
			State:     types.PromptStateDeleted,
			DeletedAt: at,
		}
		return nil
	})
	if err != nil {
		return domainagg.SoftDeletePromptResult{}, err
	}
	return out, nil
}

// RollbackSummary is the change summary recorded when a rollback gives none.
func RollbackSummary(target int) string {
	return fmt.Sprintf("Rolled back to version %d", target)
}

type appendInput struct {
	content        string
	createdBy      *string
	changeSummary  *string
	rolledBackFrom *int
	at             time.Time
}

// appendNext is the contended section: allocate, demote, append. It must run
// inside the write transaction so a failed append undoes the demotion.
func (a *promptVersionAggregate) appendNext(dbc dbctx.Context, promptID uuid.UUID, in appendInput) (domainagg.CommitVersionResult, error) {
	var out domainagg.CommitVersionResult

	slot, err := a.deps.Sequencer.Next(dbc, promptID)
	if err != nil {
		return out, err
	}
	if slot.Next <= 0 {
		return out, InvariantError("sequencer returned version %d", slot.Next)
	}

	demoted, err := a.deps.Versions.DemoteCurrent(dbc, promptID)
	if err != nil {
		return out, err
	}
	if err := RequireDemotion(slot.HasCurrent(), demoted); err != nil {
		return out, err
	}

	row, err := a.deps.Versions.Append(dbc, &types.PromptVersion{
		ID:             uuid.New(),
		PromptID:       promptID,
		VersionNumber:  slot.Next,
		Content:        in.content,
		IsCurrent:      true,
		CreatedBy:      trimmedOrNil(in.createdBy),
		ChangeSummary:  trimmedOrNil(in.changeSummary),
		RolledBackFrom: in.rolledBackFrom,
		CreatedAt:      in.at,
	})
	if err != nil {
		return out, err
	}
	if row == nil {
		return out, InvariantError("append returned no row")
	}

	out.Version = row
	out.DemotedID = slot.CurrentID
	out.DemotedVersion = slot.CurrentNumber
	return out, nil
}

func (a *promptVersionAggregate) requireActivePrompt(dbc dbctx.Context, op string, promptID uuid.UUID) error {
	p, err := a.deps.Prompts.GetByID(dbc, promptID)
	if err != nil {
		return err
	}
	if p == nil || !p.State.Readable() {
		return domainagg.NotFound(op, "prompt %s not found", promptID)
	}
	return nil
}

func writeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
