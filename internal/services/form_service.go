// form_service.go
//
// The runtime forms data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-formsdb.
// jam-build-formsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-formsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-formsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"fmt"
	"strings"

	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FormInput is the request body for creating or updating a form.
type FormInput struct {
	Name        string          `json:"name" validate:"required,min=1,max=255"`
	Slug        string          `json:"slug" validate:"omitempty,max=255,safekey"`
	Description string          `json:"description"`
	NavSection  string          `json:"navSection" validate:"omitempty,max=255"`
	NavOrder    int             `json:"navOrder"`
	NavIcon     string          `json:"navIcon" validate:"omitempty,max=255"`
	AclEnabled  bool            `json:"aclEnabled"`
	ListConfig  datatypes.JSON  `json:"listConfig,omitempty"`
}

// FormDetail bundles a form with its current draft and published versions.
type FormDetail struct {
	Form      models.Form         `json:"form"`
	Draft     *models.FormVersion `json:"draft,omitempty"`
	Published *models.FormVersion `json:"published,omitempty"`
	Fields    []models.FormField  `json:"fields"`
}

// CreateForm creates a form with an initial draft version. The caller becomes
// the owner and implicitly holds every permission on it.
func CreateForm(db *gorm.DB, p Principal, input FormInput) (*models.Form, error) {
	if err := validate.Struct(input); err != nil {
		return nil, types.NewInvalidArgument(err.Error(), "forms.validation.input")
	}
	if p.UserID == "" {
		return nil, types.NewUnauthorized("No principal", "forms.authorization")
	}

	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Name)
	}
	if !IsSafeKey(slug) {
		return nil, types.NewInvalidArgument(fmt.Sprintf("Invalid slug '%s'", slug), "forms.validation.slug")
	}

	form := models.Form{
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
		NavSection:  input.NavSection,
		NavOrder:    input.NavOrder,
		NavIcon:     input.NavIcon,
		AclEnabled:  input.AclEnabled,
		OwnerUserID: p.UserID,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Form{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.NewConflict(fmt.Sprintf("Form slug '%s' already exists", slug), "forms.duplicate")
		}

		if err := tx.Create(&form).Error; err != nil {
			return err
		}

		draft := models.FormVersion{
			FormID:          form.FormID,
			Version:         1,
			Status:          models.VersionStatusDraft,
			ListConfig:      input.ListConfig,
			CreatedByUserID: p.UserID,
		}
		return tx.Create(&draft).Error
	})
	if err != nil {
		if _, ok := types.AsCustomError(err); ok {
			return nil, err
		}
		return nil, types.NewInternal(err.Error(), "forms.create")
	}

	return &form, nil
}

// ListForms returns the forms the principal may see: everything for admins,
// otherwise owned forms plus readable published forms.
func ListForms(db *gorm.DB, p Principal) ([]models.Form, error) {
	if ResolveScopeMode(p, "list") == ScopeNone {
		return []models.Form{}, nil
	}

	var forms []models.Form
	if err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Order("name").Find(&forms).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "forms.list")
	}

	if p.IsAdmin() {
		return forms, nil
	}

	visible := make([]models.Form, 0, len(forms))
	for i := range forms {
		if forms[i].OwnerUserID == p.UserID {
			visible = append(visible, forms[i])
			continue
		}
		perms, err := EffectivePermissions(db, &forms[i], p)
		if err != nil {
			return nil, err
		}
		if perms[models.PermissionRead] {
			visible = append(visible, forms[i])
		}
	}
	return visible, nil
}

// GetForm loads one form with its current draft and published versions and
// the live field list (published fields for regular callers, draft fields
// for callers holding WRITE).
func GetForm(db *gorm.DB, p Principal, formID uint64, preferDraft bool) (*FormDetail, error) {
	form, err := RequireFormAccess(db, formID, p, models.PermissionRead)
	if err != nil {
		return nil, err
	}

	detail := FormDetail{Form: *form}

	if v, err := CurrentVersion(db, formID, models.VersionStatusDraft); err != nil {
		return nil, err
	} else {
		detail.Draft = v
	}
	if v, err := CurrentVersion(db, formID, models.VersionStatusPublished); err != nil {
		return nil, err
	} else {
		detail.Published = v
	}

	live := detail.Published
	if preferDraft && detail.Draft != nil {
		canWrite, err := CheckPermission(db, form, p, models.PermissionWrite)
		if err != nil {
			return nil, err
		}
		if canWrite {
			live = detail.Draft
		}
	}
	if live == nil {
		live = detail.Draft
	}

	if live != nil {
		fields, err := VersionFields(db, live.VersionID)
		if err != nil {
			return nil, err
		}
		detail.Fields = fields
	}

	return &detail, nil
}

// UpdateForm updates the form's own attributes and the draft list config.
func UpdateForm(db *gorm.DB, p Principal, formID uint64, input FormInput) (*models.Form, error) {
	if err := validate.Struct(input); err != nil {
		return nil, types.NewInvalidArgument(err.Error(), "forms.validation.input")
	}

	form, err := RequireFormAccess(db, formID, p, models.PermissionWrite)
	if err != nil {
		return nil, err
	}

	slug := input.Slug
	if slug == "" {
		slug = form.Slug
	}
	if !IsSafeKey(slug) {
		return nil, types.NewInvalidArgument(fmt.Sprintf("Invalid slug '%s'", slug), "forms.validation.slug")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if slug != form.Slug {
			var count int64
			if err := tx.Model(&models.Form{}).
				Where("slug = ? AND form_id <> ?", slug, formID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return types.NewConflict(fmt.Sprintf("Form slug '%s' already exists", slug), "forms.duplicate")
			}
		}

		updates := map[string]interface{}{
			"name":        input.Name,
			"slug":        slug,
			"description": input.Description,
			"nav_section": input.NavSection,
			"nav_order":   input.NavOrder,
			"nav_icon":    input.NavIcon,
			"acl_enabled": input.AclEnabled,
		}
		if err := tx.Model(form).Updates(updates).Error; err != nil {
			return err
		}

		if input.ListConfig != nil {
			draft, err := CurrentVersion(tx, formID, models.VersionStatusDraft)
			if err != nil {
				return err
			}
			if draft != nil {
				if err := tx.Model(draft).Update("list_config", input.ListConfig).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := types.AsCustomError(err); ok {
			return nil, err
		}
		return nil, types.NewInternal(err.Error(), "forms.update")
	}

	return form, nil
}

// DeleteForm removes the form and everything hanging off it. The cascade runs
// in application code in strict dependency order: ACLs, history, entries,
// fields, versions, form.
func DeleteForm(db *gorm.DB, p Principal, formID uint64) error {
	if _, err := RequireFormAccess(db, formID, p, models.PermissionDelete); err != nil {
		return err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.FormsAcl{}, "form_id = ?", formID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.FormEntryHistory{}, "form_id = ?", formID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.FormEntry{}, "form_id = ?", formID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.FormField{}, "form_id = ?", formID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.FormVersion{}, "form_id = ?", formID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Form{}, "form_id = ?", formID).Error
	})
	if err != nil {
		return types.NewInternal(err.Error(), "forms.delete")
	}
	return nil
}

// PublishForm snapshots the current draft's fields into a new published
// version. The draft stays as-is and remains independently editable.
func PublishForm(db *gorm.DB, p Principal, formID uint64) (*models.FormVersion, error) {
	form, err := RequireFormAccess(db, formID, p, models.PermissionWrite)
	if err != nil {
		return nil, err
	}

	var published models.FormVersion
	err = db.Transaction(func(tx *gorm.DB) error {
		draft, err := CurrentVersion(tx, formID, models.VersionStatusDraft)
		if err != nil {
			return err
		}
		if draft == nil {
			return types.NewInvalidArgument("Form has no draft version to publish", "forms.publish")
		}

		var maxVersion int
		if err := tx.Model(&models.FormVersion{}).
			Where("form_id = ?", formID).
			Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
			return err
		}

		published = models.FormVersion{
			FormID:          formID,
			Version:         maxVersion + 1,
			Status:          models.VersionStatusPublished,
			ListConfig:      draft.ListConfig,
			CreatedByUserID: p.UserID,
		}
		if err := tx.Create(&published).Error; err != nil {
			return err
		}

		fields, err := VersionFields(tx, draft.VersionID)
		if err != nil {
			return err
		}
		for _, f := range fields {
			copied := models.FormField{
				FormID:       formID,
				VersionID:    published.VersionID,
				Key:          f.Key,
				Label:        f.Label,
				Type:         f.Type,
				Order:        f.Order,
				Hidden:       f.Hidden,
				Required:     f.Required,
				ShowInTable:  f.ShowInTable,
				Config:       f.Config,
				DefaultValue: f.DefaultValue,
			}
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
		}

		return tx.Model(form).Update("is_published", true).Error
	})
	if err != nil {
		if _, ok := types.AsCustomError(err); ok {
			return nil, err
		}
		return nil, types.NewInternal(err.Error(), "forms.publish")
	}

	return &published, nil
}

// CurrentVersion resolves the highest-numbered version of the form with the
// given status, or nil when there is none.
func CurrentVersion(db *gorm.DB, formID uint64, status string) (*models.FormVersion, error) {
	var version models.FormVersion
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("form_id = ? AND status = ?", formID, status).
		Order("version DESC").First(&version).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, types.NewInternal(err.Error(), "forms.version")
	}
	return &version, nil
}

// VersionFields loads the ordered field list of one version.
func VersionFields(db *gorm.DB, versionID uint64) ([]models.FormField, error) {
	var fields []models.FormField
	if err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("version_id = ?", versionID).
		Order("field_order, field_id").Find(&fields).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "forms.fields")
	}
	return fields, nil
}

// FormSchema produces a platform-agnostic JSON description of the form's
// published fields and entry endpoints for non-UI clients.
func FormSchema(db *gorm.DB, p Principal, formID uint64) (map[string]interface{}, error) {
	form, err := RequireFormAccess(db, formID, p, models.PermissionRead)
	if err != nil {
		return nil, err
	}

	published, err := CurrentVersion(db, formID, models.VersionStatusPublished)
	if err != nil {
		return nil, err
	}
	if published == nil {
		return nil, types.NewNotFound(fmt.Sprintf("Form '%d' has no published version", formID), "forms.notpublished")
	}

	fields, err := VersionFields(db, published.VersionID)
	if err != nil {
		return nil, err
	}

	fieldDocs := make([]map[string]interface{}, 0, len(fields))
	for _, f := range fields {
		doc := map[string]interface{}{
			"key":      f.Key,
			"label":    f.Label,
			"type":     f.Type,
			"order":    f.Order,
			"required": f.Required,
			"hidden":   f.Hidden,
		}
		if f.Config != nil {
			doc["config"] = f.Config
		}
		if f.DefaultValue != nil {
			doc["default"] = f.DefaultValue
		}
		fieldDocs = append(fieldDocs, doc)
	}

	base := fmt.Sprintf("/api/forms/%d/entries", formID)
	return map[string]interface{}{
		"form": map[string]interface{}{
			"id":          form.FormID,
			"name":        form.Name,
			"slug":        form.Slug,
			"description": form.Description,
		},
		"version": published.Version,
		"fields":  fieldDocs,
		"endpoints": map[string]string{
			"list":   base,
			"create": base,
			"get":    base + "/{entryId}",
			"update": base + "/{entryId}",
			"delete": base + "/{entryId}",
		},
	}, nil
}

// Slugify derives a URL- and key-safe slug from a display name.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
