package prompts

import (
	"time"

	"github.com/google/uuid"
)

// PromptVersion is an immutable snapshot of prompt content.
//
// Only IsCurrent ever changes after insert, and only from true to false when
// a successor version commits. (prompt_id, version_number) is unique forever;
// idx_prompt_version_current additionally allows at most one current row per prompt.
type PromptVersion struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	PromptID      uuid.UUID `gorm:"type:uuid;not null;index:idx_prompt_version_prompt_number,unique,priority:1;index" json:"prompt_id"`
	VersionNumber int       `gorm:"column:version_number;not null;index:idx_prompt_version_prompt_number,unique,priority:2" json:"version_number"`

	Content   string `gorm:"column:content;type:text;not null" json:"content"`
	IsCurrent bool   `gorm:"column:is_current;not null" json:"is_current"`

	CreatedBy     *string `gorm:"column:created_by" json:"created_by,omitempty"`
	ChangeSummary *string `gorm:"column:change_summary;type:text" json:"change_summary,omitempty"`

	// Source version number when this row was manufactured by a rollback.
	RolledBackFrom *int `gorm:"column:rolled_back_from" json:"rolled_back_from,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	Prompt *Prompt `gorm:"foreignKey:PromptID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (PromptVersion) TableName() string { return "prompt_version" }

// PromptVersionSummary is the metadata-only view used by history listings.
type PromptVersionSummary struct {
	VersionNumber int       `json:"version_number"`
	IsCurrent     bool      `json:"is_current"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     *string   `json:"created_by,omitempty"`
	ChangeSummary *string   `json:"change_summary,omitempty"`
}

// Summary projects the metadata fields of v.
func (v *PromptVersion) Summary() PromptVersionSummary {
	if v == nil {
		return PromptVersionSummary{}
	}
	return PromptVersionSummary{
		VersionNumber: v.VersionNumber,
		IsCurrent:     v.IsCurrent,
		CreatedAt:     v.CreatedAt,
		CreatedBy:     v.CreatedBy,
		ChangeSummary: v.ChangeSummary,
	}
}
