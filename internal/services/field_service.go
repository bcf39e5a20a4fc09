package services

import (
	"encoding/json"
	"fmt"

	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FieldInput is the request body for adding or updating a field on the
// current draft version.
type FieldInput struct {
	Key          string         `json:"key" validate:"required,max=255,safekey"`
	Label        string         `json:"label" validate:"required,max=255"`
	Type         string         `json:"type" validate:"required,oneof=text url textarea number date datetime select checkbox reference entity_reference"`
	Order        int            `json:"order"`
	Hidden       bool           `json:"hidden"`
	Required     bool           `json:"required"`
	ShowInTable  bool           `json:"showInTable"`
	Config       datatypes.JSON `json:"config,omitempty"`
	DefaultValue datatypes.JSON `json:"defaultValue,omitempty"`
}

// FieldConfig is the decoded per-type configuration blob.
type FieldConfig struct {
	Options      []string         `json:"options,omitempty"`
	TargetFormID uint64           `json:"targetFormId,omitempty"`
	Multi        bool             `json:"multi,omitempty"`
	Entity       *EntityRefConfig `json:"entity,omitempty"`
}

// EntityRefConfig declares which external entity kind an entity_reference
// field links to.
type EntityRefConfig struct {
	Kind  string `json:"kind"`
	Multi bool   `json:"multi"`
}

// ParseFieldConfig decodes a field's config blob. A missing or malformed
// config yields the zero value, never an error; consumers treat such fields
// as unconfigured and skip them.
func ParseFieldConfig(f models.FormField) FieldConfig {
	var cfg FieldConfig
	if len(f.Config) == 0 {
		return cfg
	}
	if err := json.Unmarshal(f.Config, &cfg); err != nil {
		return FieldConfig{}
	}
	return cfg
}

// FieldEntityKind returns the declared entity kind of an entity_reference
// field, or "" when the field is not an entity reference or the config does
// not declare one.
func FieldEntityKind(f models.FormField) string {
	if f.Type != models.FieldTypeEntityReference {
		return ""
	}
	cfg := ParseFieldConfig(f)
	if cfg.Entity == nil {
		return ""
	}
	return cfg.Entity.Kind
}

// FieldIsMulti reports whether a reference or entity_reference field stores
// an array of relations rather than a single one.
func FieldIsMulti(f models.FormField) bool {
	cfg := ParseFieldConfig(f)
	if f.Type == models.FieldTypeEntityReference && cfg.Entity != nil {
		return cfg.Entity.Multi
	}
	return cfg.Multi
}

// AddField appends a field to the form's current draft version.
func AddField(db *gorm.DB, p Principal, formID uint64, input FieldInput) (*models.FormField, error) {
	if err := validate.Struct(input); err != nil {
		return nil, types.NewInvalidArgument(err.Error(), "fields.validation.input")
	}
	if err := validateTypeConfig(input); err != nil {
		return nil, err
	}

	if _, err := RequireFormAccess(db, formID, p, models.PermissionWrite); err != nil {
		return nil, err
	}

	var field models.FormField
	err := db.Transaction(func(tx *gorm.DB) error {
		draft, err := CurrentVersion(tx, formID, models.VersionStatusDraft)
		if err != nil {
			return err
		}
		if draft == nil {
			return types.NewInvalidArgument("Form has no draft version", "fields.nodraft")
		}

		var count int64
		if err := tx.Model(&models.FormField{}).
			Where("version_id = ? AND field_key = ?", draft.VersionID, input.Key).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.NewConflict(fmt.Sprintf("Field key '%s' already exists", input.Key), "fields.duplicate")
		}

		field = models.FormField{
			FormID:       formID,
			VersionID:    draft.VersionID,
			Key:          input.Key,
			Label:        input.Label,
			Type:         input.Type,
			Order:        input.Order,
			Hidden:       input.Hidden,
			Required:     input.Required,
			ShowInTable:  input.ShowInTable,
			Config:       input.Config,
			DefaultValue: input.DefaultValue,
		}
		return tx.Create(&field).Error
	})
	if err != nil {
		if _, ok := types.AsCustomError(err); ok {
			return nil, err
		}
		return nil, types.NewInternal(err.Error(), "fields.add")
	}

	return &field, nil
}

// UpdateField modifies a draft field in place. The key may change as long as
// it stays unique within the version.
func UpdateField(db *gorm.DB, p Principal, formID, fieldID uint64, input FieldInput) (*models.FormField, error) {
	if err := validate.Struct(input); err != nil {
		return nil, types.NewInvalidArgument(err.Error(), "fields.validation.input")
	}
	if err := validateTypeConfig(input); err != nil {
		return nil, err
	}

	if _, err := RequireFormAccess(db, formID, p, models.PermissionWrite); err != nil {
		return nil, err
	}

	var field models.FormField
	err := db.Transaction(func(tx *gorm.DB) error {
		draft, err := CurrentVersion(tx, formID, models.VersionStatusDraft)
		if err != nil {
			return err
		}
		if draft == nil {
			return types.NewInvalidArgument("Form has no draft version", "fields.nodraft")
		}

		if err := tx.First(&field, "field_id = ? AND version_id = ?", fieldID, draft.VersionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFound("Field not found in draft", "fields.notfound")
			}
			return err
		}

		if input.Key != field.Key {
			var count int64
			if err := tx.Model(&models.FormField{}).
				Where("version_id = ? AND field_key = ? AND field_id <> ?", draft.VersionID, input.Key, fieldID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return types.NewConflict(fmt.Sprintf("Field key '%s' already exists", input.Key), "fields.duplicate")
			}
		}

		updates := map[string]interface{}{
			"field_key":     input.Key,
			"label":         input.Label,
			"type":          input.Type,
			"field_order":   input.Order,
			"hidden":        input.Hidden,
			"required":      input.Required,
			"show_in_table": input.ShowInTable,
			"config":        input.Config,
			"default_value": input.DefaultValue,
		}
		return tx.Model(&field).Updates(updates).Error
	})
	if err != nil {
		if _, ok := types.AsCustomError(err); ok {
			return nil, err
		}
		return nil, types.NewInternal(err.Error(), "fields.update")
	}

	return &field, nil
}

// DeleteField removes a field from the draft version. Published versions are
// never touched.
func DeleteField(db *gorm.DB, p Principal, formID, fieldID uint64) error {
	if _, err := RequireFormAccess(db, formID, p, models.PermissionWrite); err != nil {
		return err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		draft, err := CurrentVersion(tx, formID, models.VersionStatusDraft)
		if err != nil {
			return err
		}
		if draft == nil {
			return types.NewInvalidArgument("Form has no draft version", "fields.nodraft")
		}

		result := tx.Delete(&models.FormField{}, "field_id = ? AND version_id = ?", fieldID, draft.VersionID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.NewNotFound("Field not found in draft", "fields.notfound")
		}
		return nil
	})
	if err != nil {
		if _, ok := types.AsCustomError(err); ok {
			return err
		}
		return types.NewInternal(err.Error(), "fields.delete")
	}
	return nil
}

// ReorderFields assigns the draft fields' order to match the given id list.
func ReorderFields(db *gorm.DB, p Principal, formID uint64, fieldIDs []uint64) error {
	if len(fieldIDs) == 0 {
		return types.NewInvalidArgument("fieldIds must not be empty", "fields.validation.input")
	}

	if _, err := RequireFormAccess(db, formID, p, models.PermissionWrite); err != nil {
		return err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		draft, err := CurrentVersion(tx, formID, models.VersionStatusDraft)
		if err != nil {
			return err
		}
		if draft == nil {
			return types.NewInvalidArgument("Form has no draft version", "fields.nodraft")
		}

		for i, id := range fieldIDs {
			result := tx.Model(&models.FormField{}).
				Where("field_id = ? AND version_id = ?", id, draft.VersionID).
				Update("field_order", i)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return types.NewNotFound(fmt.Sprintf("Field '%d' not found in draft", id), "fields.notfound")
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := types.AsCustomError(err); ok {
			return err
		}
		return types.NewInternal(err.Error(), "fields.reorder")
	}
	return nil
}

// validateTypeConfig applies the per-type config rules that struct tags
// cannot express.
func validateTypeConfig(input FieldInput) error {
	var cfg FieldConfig
	if len(input.Config) > 0 {
		if err := json.Unmarshal(input.Config, &cfg); err != nil {
			return types.NewInvalidArgument("Malformed field config", "fields.validation.config")
		}
	}

	switch input.Type {
	case models.FieldTypeSelect:
		if len(cfg.Options) == 0 {
			return types.NewInvalidArgument("Select fields require config.options", "fields.validation.config")
		}
	case models.FieldTypeReference:
		if cfg.TargetFormID == 0 {
			return types.NewInvalidArgument("Reference fields require config.targetFormId", "fields.validation.config")
		}
	case models.FieldTypeEntityReference:
		if cfg.Entity == nil || cfg.Entity.Kind == "" {
			return types.NewInvalidArgument("Entity reference fields require config.entity.kind", "fields.validation.config")
		}
		if !IsSafeKey(cfg.Entity.Kind) {
			return types.NewInvalidArgument(fmt.Sprintf("Invalid entity kind '%s'", cfg.Entity.Kind), "fields.validation.config")
		}
	}
	return nil
}
