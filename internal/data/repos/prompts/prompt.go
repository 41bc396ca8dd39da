package prompts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/promptlab-backend/internal/domain"
	"github.com/yungbote/promptlab-backend/internal/platform/dbctx"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

type PromptRepo interface {
	Create(dbc dbctx.Context, rows []*types.Prompt) ([]*types.Prompt, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Prompt, error)
	GetActiveByID(dbc dbctx.Context, id uuid.UUID) (*types.Prompt, error)
	// ListActive returns active prompts newest first.
	ListActive(dbc dbctx.Context) ([]*types.Prompt, error)
	// TransitionState moves a prompt from one state to another and reports whether a row changed.
	TransitionState(dbc dbctx.Context, id uuid.UUID, from, to types.PromptState, at time.Time) (bool, error)
}

type promptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptRepo(db *gorm.DB, baseLog *logger.Logger) PromptRepo {
	return &promptRepo{db: db, log: baseLog.With("repo", "PromptRepo")}
}

func (r *promptRepo) Create(dbc dbctx.Context, rows []*types.Prompt) ([]*types.Prompt, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Prompt{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row == nil {
			continue
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.State == "" {
			row.State = types.PromptStateActive
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = row.CreatedAt
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetByID returns the prompt regardless of state, or nil when absent.
func (r *promptRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Prompt, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Prompt
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// GetActiveByID returns the prompt only when it is in the active state.
func (r *promptRepo) GetActiveByID(dbc dbctx.Context, id uuid.UUID) (*types.Prompt, error) {
	row, err := r.GetByID(dbc, id)
	if err != nil || row == nil {
		return nil, err
	}
	if !row.State.Readable() {
		return nil, nil
	}
	return row, nil
}

func (r *promptRepo) ListActive(dbc dbctx.Context) ([]*types.Prompt, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Prompt
	if err := t.WithContext(dbc.Ctx).
		Where("state = ?", types.PromptStateActive).
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *promptRepo) TransitionState(dbc dbctx.Context, id uuid.UUID, from, to types.PromptState, at time.Time) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	updates := map[string]interface{}{
		"state":      to,
		"updated_at": at,
	}
	if to == types.PromptStateDeleted {
		updates["deleted_at"] = at
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.Prompt{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
