package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/yungbote/promptlab-backend/internal/data/aggregates"
	"github.com/yungbote/promptlab-backend/internal/data/repos"
	types "github.com/yungbote/promptlab-backend/internal/domain"
	domainagg "github.com/yungbote/promptlab-backend/internal/domain/aggregates"
	"github.com/yungbote/promptlab-backend/internal/observability"
	"github.com/yungbote/promptlab-backend/internal/platform/ctxutil"
	"github.com/yungbote/promptlab-backend/internal/platform/dbctx"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

type CreatePromptInput struct {
	Content       string
	CreatedBy     *string
	ChangeSummary *string
}

type UpdatePromptInput struct {
	Content       string
	CreatedBy     *string
	ChangeSummary *string
}

type RollbackInput struct {
	CreatedBy     *string
	ChangeSummary *string
}

// PromptWithCurrent is a prompt identity joined with its current version.
type PromptWithCurrent struct {
	Prompt  *types.Prompt
	Current *types.PromptVersion
}

// VersionPublisher receives committed-version events after the write
// transaction has committed. Publishing is best effort.
type VersionPublisher interface {
	Publish(ctx context.Context, ev types.VersionEvent) error
}

// PromptVersionService is the public contract over a prompt's version history.
//
// Errors are *aggregates.Error values; callers branch on domainagg.CodeOf.
// Conflict and retryable failures may be retried by the caller as a whole.
type PromptVersionService interface {
	Create(ctx context.Context, in CreatePromptInput) (*types.PromptVersion, error)
	Update(ctx context.Context, promptID uuid.UUID, in UpdatePromptInput) (*types.PromptVersion, error)
	GetCurrent(ctx context.Context, promptID uuid.UUID) (*types.PromptVersion, error)
	GetVersion(ctx context.Context, promptID uuid.UUID, number int) (*types.PromptVersion, error)
	ListVersions(ctx context.Context, promptID uuid.UUID) ([]types.PromptVersionSummary, error)
	Rollback(ctx context.Context, promptID uuid.UUID, number int, in RollbackInput) (*types.PromptVersion, error)
	Delete(ctx context.Context, promptID uuid.UUID) error
	GetPrompt(ctx context.Context, promptID uuid.UUID) (*PromptWithCurrent, error)
	// ListPrompts returns every active prompt with its current version, newest prompt first.
	ListPrompts(ctx context.Context) ([]PromptWithCurrent, error)
}

type promptVersionService struct {
	log       *logger.Logger
	agg       domainagg.PromptVersionAggregate
	prompts   repos.PromptRepo
	versions  repos.PromptVersionRepo
	publisher VersionPublisher
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewPromptVersionService(
	baseLog *logger.Logger,
	agg domainagg.PromptVersionAggregate,
	prompts repos.PromptRepo,
	versions repos.PromptVersionRepo,
	publisher VersionPublisher,
	metrics *observability.Metrics,
) PromptVersionService {
	return &promptVersionService{
		log:       baseLog.With("service", "PromptVersionService"),
		agg:       agg,
		prompts:   prompts,
		versions:  versions,
		publisher: publisher,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *promptVersionService) Create(ctx context.Context, in CreatePromptInput) (*types.PromptVersion, error) {
	const op = "PromptVersionService.Create"
	if err := requireContent(op, in.Content); err != nil {
		return nil, err
	}
	res, err := s.agg.CreatePrompt(ctx, domainagg.CreatePromptInput{
		PromptID:      uuid.New(),
		Content:       in.Content,
		CreatedBy:     in.CreatedBy,
		ChangeSummary: in.ChangeSummary,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, types.VersionKindCreate, res)
	return res.Version, nil
}

func (s *promptVersionService) Update(ctx context.Context, promptID uuid.UUID, in UpdatePromptInput) (*types.PromptVersion, error) {
	const op = "PromptVersionService.Update"
	if err := requirePromptID(op, promptID); err != nil {
		return nil, err
	}
	if err := requireContent(op, in.Content); err != nil {
		return nil, err
	}
	res, err := s.agg.CommitVersion(ctx, domainagg.CommitVersionInput{
		PromptID:      promptID,
		Content:       in.Content,
		CreatedBy:     in.CreatedBy,
		ChangeSummary: in.ChangeSummary,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, types.VersionKindUpdate, res)
	return res.Version, nil
}

func (s *promptVersionService) Rollback(ctx context.Context, promptID uuid.UUID, number int, in RollbackInput) (*types.PromptVersion, error) {
	const op = "PromptVersionService.Rollback"
	if err := requirePromptID(op, promptID); err != nil {
		return nil, err
	}
	if err := requireVersionNumber(op, number); err != nil {
		return nil, err
	}
	res, err := s.agg.RollbackToVersion(ctx, domainagg.RollbackVersionInput{
		PromptID:      promptID,
		TargetVersion: number,
		CreatedBy:     in.CreatedBy,
		ChangeSummary: in.ChangeSummary,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, types.VersionKindRollback, res)
	return res.Version, nil
}

func (s *promptVersionService) Delete(ctx context.Context, promptID uuid.UUID) error {
	const op = "PromptVersionService.Delete"
	if err := requirePromptID(op, promptID); err != nil {
		return err
	}
	res, err := s.agg.SoftDeletePrompt(ctx, domainagg.SoftDeletePromptInput{PromptID: promptID, DeletedAt: s.now()})
	if err != nil {
		return err
	}
	s.log.Info("prompt soft-deleted", "prompt_id", res.PromptID)
	return nil
}

func (s *promptVersionService) GetCurrent(ctx context.Context, promptID uuid.UUID) (*types.PromptVersion, error) {
	const op = "PromptVersionService.GetCurrent"
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.activePrompt(dbc, op, promptID); err != nil {
		return nil, err
	}
	return s.currentOf(dbc, op, promptID)
}

func (s *promptVersionService) GetVersion(ctx context.Context, promptID uuid.UUID, number int) (*types.PromptVersion, error) {
	const op = "PromptVersionService.GetVersion"
	if err := requireVersionNumber(op, number); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.activePrompt(dbc, op, promptID); err != nil {
		return nil, err
	}
	row, err := s.versions.GetByNumber(dbc, promptID, number)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if row == nil {
		return nil, domainagg.NotFound(op, "version %d of prompt %s not found", number, promptID)
	}
	return row, nil
}

func (s *promptVersionService) ListVersions(ctx context.Context, promptID uuid.UUID) ([]types.PromptVersionSummary, error) {
	const op = "PromptVersionService.ListVersions"
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.activePrompt(dbc, op, promptID); err != nil {
		return nil, err
	}
	rows, err := s.versions.ListByPromptIDDesc(dbc, promptID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return lo.Map(rows, func(v *types.PromptVersion, _ int) types.PromptVersionSummary {
		return v.Summary()
	}), nil
}

func (s *promptVersionService) GetPrompt(ctx context.Context, promptID uuid.UUID) (*PromptWithCurrent, error) {
	const op = "PromptVersionService.GetPrompt"
	dbc := dbctx.Context{Ctx: ctx}
	p, err := s.activePrompt(dbc, op, promptID)
	if err != nil {
		return nil, err
	}
	cur, err := s.currentOf(dbc, op, promptID)
	if err != nil {
		return nil, err
	}
	return &PromptWithCurrent{Prompt: p, Current: cur}, nil
}

func (s *promptVersionService) ListPrompts(ctx context.Context) ([]PromptWithCurrent, error) {
	const op = "PromptVersionService.ListPrompts"
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.prompts.ListActive(dbc)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	ids := lo.Map(rows, func(p *types.Prompt, _ int) uuid.UUID { return p.ID })
	current, err := s.versions.GetCurrentByPromptIDs(dbc, ids)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	byPrompt := lo.KeyBy(current, func(v *types.PromptVersion) uuid.UUID { return v.PromptID })

	out := make([]PromptWithCurrent, 0, len(rows))
	for _, p := range rows {
		cur, ok := byPrompt[p.ID]
		if !ok {
			// A prompt deleted between the two reads has no current row to report.
			if still, err := s.prompts.GetActiveByID(dbc, p.ID); err == nil && still == nil {
				continue
			}
			return nil, domainagg.NewError(domainagg.CodeInvariantViolation, op, "prompt "+p.ID.String()+" has no current version", nil)
		}
		out = append(out, PromptWithCurrent{Prompt: p, Current: cur})
	}
	return out, nil
}

func (s *promptVersionService) activePrompt(dbc dbctx.Context, op string, promptID uuid.UUID) (*types.Prompt, error) {
	if err := requirePromptID(op, promptID); err != nil {
		return nil, err
	}
	p, err := s.prompts.GetActiveByID(dbc, promptID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if p == nil {
		return nil, domainagg.NotFound(op, "prompt %s not found", promptID)
	}
	return p, nil
}

func (s *promptVersionService) currentOf(dbc dbctx.Context, op string, promptID uuid.UUID) (*types.PromptVersion, error) {
	cur, err := s.versions.GetCurrent(dbc, promptID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if cur == nil {
		// An active prompt always has exactly one current version.
		return nil, domainagg.NewError(domainagg.CodeInvariantViolation, op, "prompt "+promptID.String()+" has no current version", nil)
	}
	return cur, nil
}

// committed runs after the write transaction. Failures here never undo the write.
func (s *promptVersionService) committed(ctx context.Context, kind types.VersionKind, res domainagg.CommitVersionResult) {
	if res.Version == nil {
		return
	}
	s.metrics.IncVersionCommitted(string(kind))
	s.log.Debug("version committed",
		"prompt_id", res.Version.PromptID,
		"version_number", res.Version.VersionNumber,
		"kind", kind,
		"created_by", lo.FromPtr(res.Version.CreatedBy),
		"request_id", ctxutil.RequestID(ctx),
	)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, types.NewVersionEvent(kind, res.Version, res.DemotedVersion)); err != nil {
		s.metrics.IncVersionEvent("failed")
		s.log.Warn("version event publish failed", "prompt_id", res.Version.PromptID, "error", err)
		return
	}
	s.metrics.IncVersionEvent("published")
}

func requirePromptID(op string, id uuid.UUID) error {
	if id == uuid.Nil {
		return domainagg.Validation(op, "missing prompt_id")
	}
	return nil
}

func requireContent(op, content string) error {
	if strings.TrimSpace(content) == "" {
		return domainagg.Validation(op, "content must not be empty")
	}
	return nil
}

func requireVersionNumber(op string, n int) error {
	if n <= 0 {
		return domainagg.Validation(op, "version number must be positive, got %d", n)
	}
	return nil
}
