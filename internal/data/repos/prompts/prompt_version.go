package prompts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/promptlab-backend/internal/domain"
	"github.com/yungbote/promptlab-backend/internal/platform/dbctx"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
)

// PromptVersionRepo is the durable store of immutable version rows.
//
// Append relies on idx_prompt_version_prompt_number and idx_prompt_version_current;
// a duplicate surfaces as the driver's unique violation (gorm.ErrDuplicatedKey when
// the connection was opened with TranslateError).
type PromptVersionRepo interface {
	Append(dbc dbctx.Context, row *types.PromptVersion) (*types.PromptVersion, error)
	// DemoteCurrent clears is_current on the prompt's current row and returns rows affected.
	DemoteCurrent(dbc dbctx.Context, promptID uuid.UUID) (int64, error)

	GetCurrent(dbc dbctx.Context, promptID uuid.UUID) (*types.PromptVersion, error)
	GetCurrentByPromptIDs(dbc dbctx.Context, promptIDs []uuid.UUID) ([]*types.PromptVersion, error)
	GetByNumber(dbc dbctx.Context, promptID uuid.UUID, number int) (*types.PromptVersion, error)
	ListByPromptIDDesc(dbc dbctx.Context, promptID uuid.UUID) ([]*types.PromptVersion, error)
	GetMaxVersionNumber(dbc dbctx.Context, promptID uuid.UUID) (int, error)
	CountCurrent(dbc dbctx.Context, promptID uuid.UUID) (int64, error)
}

type promptVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptVersionRepo(db *gorm.DB, baseLog *logger.Logger) PromptVersionRepo {
	return &promptVersionRepo{db: db, log: baseLog.With("repo", "PromptVersionRepo")}
}

func (r *promptVersionRepo) Append(dbc dbctx.Context, row *types.PromptVersion) (*types.PromptVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	// Omit the belongs-to association so gorm never upserts the parent row.
	if err := t.WithContext(dbc.Ctx).Omit("Prompt").Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *promptVersionRepo) DemoteCurrent(dbc dbctx.Context, promptID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if promptID == uuid.Nil {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.PromptVersion{}).
		Where("prompt_id = ? AND is_current = ?", promptID, true).
		Update("is_current", false)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *promptVersionRepo) GetCurrent(dbc dbctx.Context, promptID uuid.UUID) (*types.PromptVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if promptID == uuid.Nil {
		return nil, nil
	}
	var out []*types.PromptVersion
	if err := t.WithContext(dbc.Ctx).
		Where("prompt_id = ? AND is_current = ?", promptID, true).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *promptVersionRepo) GetCurrentByPromptIDs(dbc dbctx.Context, promptIDs []uuid.UUID) ([]*types.PromptVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(promptIDs) == 0 {
		return []*types.PromptVersion{}, nil
	}
	var out []*types.PromptVersion
	if err := t.WithContext(dbc.Ctx).
		Where("prompt_id IN ? AND is_current = ?", promptIDs, true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *promptVersionRepo) GetByNumber(dbc dbctx.Context, promptID uuid.UUID, number int) (*types.PromptVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if promptID == uuid.Nil || number <= 0 {
		return nil, nil
	}
	var out []*types.PromptVersion
	if err := t.WithContext(dbc.Ctx).
		Where("prompt_id = ? AND version_number = ?", promptID, number).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *promptVersionRepo) ListByPromptIDDesc(dbc dbctx.Context, promptID uuid.UUID) ([]*types.PromptVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.PromptVersion
	if promptID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("prompt_id = ?", promptID).
		Order("version_number DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *promptVersionRepo) GetMaxVersionNumber(dbc dbctx.Context, promptID uuid.UUID) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if promptID == uuid.Nil {
		return 0, nil
	}
	var max int
	if err := t.WithContext(dbc.Ctx).
		Model(&types.PromptVersion{}).
		Select("COALESCE(MAX(version_number), 0)").
		Where("prompt_id = ?", promptID).
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (r *promptVersionRepo) CountCurrent(dbc dbctx.Context, promptID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if promptID == uuid.Nil {
		return 0, nil
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.PromptVersion{}).
		Where("prompt_id = ? AND is_current = ?", promptID, true).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
