package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	types "github.com/yungbote/promptlab-backend/internal/domain"
	"github.com/yungbote/promptlab-backend/internal/platform/promptstyle"
	"github.com/yungbote/promptlab-backend/internal/services"
)

type versionBody struct {
	Content       string  `json:"content"`
	CreatedBy     *string `json:"created_by"`
	ChangeSummary *string `json:"change_summary"`
}

type rollbackBody struct {
	CreatedBy     *string `json:"created_by"`
	ChangeSummary *string `json:"change_summary"`
}

// VersionView is the full version record returned by the API.
type VersionView struct {
	ID             uuid.UUID `json:"id"`
	PromptID       uuid.UUID `json:"prompt_id"`
	VersionNumber  int       `json:"version_number"`
	Content        string    `json:"content"`
	Variables      []string  `json:"variables"`
	IsCurrent      bool      `json:"is_current"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      *string   `json:"created_by,omitempty"`
	ChangeSummary  *string   `json:"change_summary,omitempty"`
	RolledBackFrom *int      `json:"rolled_back_from,omitempty"`
}

type PromptView struct {
	ID             uuid.UUID   `json:"id"`
	State          string      `json:"state"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	CurrentVersion VersionView `json:"current_version"`
}

type PromptListView struct {
	Prompts []PromptView `json:"prompts"`
	Total   int          `json:"total"`
}

type VersionListView struct {
	PromptID uuid.UUID                    `json:"prompt_id"`
	Versions []types.PromptVersionSummary `json:"versions"`
}

func newVersionView(v *types.PromptVersion) VersionView {
	return VersionView{
		ID:             v.ID,
		PromptID:       v.PromptID,
		VersionNumber:  v.VersionNumber,
		Content:        v.Content,
		Variables:      promptstyle.ExtractVariables(v.Content),
		IsCurrent:      v.IsCurrent,
		CreatedAt:      v.CreatedAt,
		CreatedBy:      v.CreatedBy,
		ChangeSummary:  v.ChangeSummary,
		RolledBackFrom: v.RolledBackFrom,
	}
}

func newPromptView(p *services.PromptWithCurrent) PromptView {
	return PromptView{
		ID:             p.Prompt.ID,
		State:          string(p.Prompt.State),
		CreatedAt:      p.Prompt.CreatedAt,
		UpdatedAt:      p.Prompt.UpdatedAt,
		CurrentVersion: newVersionView(p.Current),
	}
}

func newVersionListView(promptID uuid.UUID, rows []types.PromptVersionSummary) VersionListView {
	// Always encode an empty list as [] rather than null.
	return VersionListView{PromptID: promptID, Versions: lo.Ternary(rows == nil, []types.PromptVersionSummary{}, rows)}
}

func newPromptListView(rows []services.PromptWithCurrent) PromptListView {
	views := lo.Map(rows, func(p services.PromptWithCurrent, _ int) PromptView { return newPromptView(&p) })
	return PromptListView{Prompts: views, Total: len(views)}
}
