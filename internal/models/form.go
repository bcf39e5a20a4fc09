package models

import (
	"time"

	"gorm.io/datatypes"
)

// Field types understood by the runtime schema.
const (
	FieldTypeText            = "text"
	FieldTypeURL             = "url"
	FieldTypeTextarea        = "textarea"
	FieldTypeNumber          = "number"
	FieldTypeDate            = "date"
	FieldTypeDatetime        = "datetime"
	FieldTypeSelect          = "select"
	FieldTypeCheckbox        = "checkbox"
	FieldTypeReference       = "reference"
	FieldTypeEntityReference = "entity_reference"
)

// FormVersion statuses.
const (
	VersionStatusDraft     = "draft"
	VersionStatusPublished = "published"
)

// Form represents a runtime-defined form schema container
type Form struct {
	FormID      uint64 `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:255;not null"`
	Slug        string `gorm:"uniqueIndex;size:255;not null"`
	Description string `gorm:"type:text"`
	IsPublished bool   `gorm:"not null;default:false"`
	NavSection  string `gorm:"size:255"`
	NavOrder    int
	NavIcon     string `gorm:"size:255"`
	AclEnabled  bool   `gorm:"not null;default:false"`
	OwnerUserID string `gorm:"type:char(36);not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FormVersion represents a draft or published snapshot of a form's field list.
// Fields belong to a version, not the form, so drafts can be edited without
// mutating what is live.
type FormVersion struct {
	VersionID       uint64 `gorm:"primaryKey;autoIncrement"`
	FormID          uint64 `gorm:"not null;index:idx_form_version"`
	Version         int    `gorm:"not null;index:idx_form_version"`
	Status          string `gorm:"size:16;not null;index"`
	ListConfig      datatypes.JSON
	CreatedByUserID string `gorm:"type:char(36)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FormField represents one field in a specific form version
type FormField struct {
	FieldID      uint64 `gorm:"primaryKey;autoIncrement"`
	FormID       uint64 `gorm:"not null;index"`
	VersionID    uint64 `gorm:"not null;index:idx_version_key,unique"`
	Key          string `gorm:"column:field_key;size:255;not null;index:idx_version_key,unique"`
	Label        string `gorm:"size:255;not null"`
	Type         string `gorm:"size:32;not null"`
	Order        int    `gorm:"column:field_order;not null;default:0"`
	Hidden       bool   `gorm:"not null;default:false"`
	Required     bool   `gorm:"not null;default:false"`
	ShowInTable  bool   `gorm:"not null;default:true"`
	Config       datatypes.JSON
	DefaultValue datatypes.JSON
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name for Form
func (Form) TableName() string {
	return "forms"
}

// TableName overrides the table name for FormVersion
func (FormVersion) TableName() string {
	return "form_versions"
}

// TableName overrides the table name for FormField
func (FormField) TableName() string {
	return "form_fields"
}
