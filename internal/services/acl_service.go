// acl_service.go
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
	"encoding/json"
	"fmt"

	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Principal identifies the caller of every operation. Roles come from the
// session or bearer token; groups come from the bearer token only.
type Principal struct {
	UserID string
	Email  string
	Roles  []string
	Groups []string
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.HasRole("admin")
}

// Scope modes describe the breadth of rows a principal may act on for an
// operation. The ldd_* values exist for gate compatibility and are treated
// like all/own respectively.
const (
	ScopeNone   = "none"
	ScopeOwn    = "own"
	ScopeAll    = "all"
	ScopeLddAny = "ldd_any"
	ScopeLddAll = "ldd_all"
)

// AclInput is the request body for granting or updating an ACL row.
type AclInput struct {
	PrincipalType string   `json:"principalType" validate:"required,oneof=user group role"`
	PrincipalID   string   `json:"principalId" validate:"required,max=255"`
	Permissions   []string `json:"permissions" validate:"required,min=1,dive,oneof=READ WRITE DELETE MANAGE_ACL"`
}

var allPermissions = []string{
	models.PermissionRead,
	models.PermissionWrite,
	models.PermissionDelete,
	models.PermissionManageAcl,
}

// ResolveScopeMode decides row-level breadth before any store access. A
// principal with no identity gets none, which short-circuits to an empty
// result or 403 without touching the store.
func ResolveScopeMode(p Principal, op string) string {
	if p.UserID == "" {
		return ScopeNone
	}
	if p.IsAdmin() {
		return ScopeAll
	}
	if op == "delete" {
		return ScopeOwn
	}
	return ScopeAll
}

// EffectivePermissions computes the principal's permission set on a form as
// the union across every matching ACL row (direct user id, user by email,
// each role, each group). Owner and admin always hold the full set; open
// forms (published, ACL disabled) grant READ and WRITE to any principal.
func EffectivePermissions(db *gorm.DB, form *models.Form, p Principal) (map[string]bool, error) {
	perms := make(map[string]bool)

	if p.UserID == "" {
		return perms, nil
	}

	if p.IsAdmin() || p.UserID == form.OwnerUserID {
		for _, perm := range allPermissions {
			perms[perm] = true
		}
		return perms, nil
	}

	if !form.AclEnabled {
		if form.IsPublished {
			perms[models.PermissionRead] = true
			perms[models.PermissionWrite] = true
		}
		return perms, nil
	}

	rows, err := matchingAclRows(db, form.FormID, p)
	if err != nil {
		return nil, types.NewInternal(fmt.Sprintf("acl lookup failed: %v", err), "acl.resolve")
	}

	for _, row := range rows {
		var granted []string
		if err := json.Unmarshal(row.Permissions, &granted); err != nil {
			// A malformed row contributes nothing
			continue
		}
		for _, perm := range granted {
			perms[perm] = true
		}
	}

	return perms, nil
}

// matchingAclRows loads every ACL row on the form matching any of the
// principal's identities.
func matchingAclRows(db *gorm.DB, formID uint64, p Principal) ([]models.FormsAcl, error) {
	userIDs := []string{p.UserID}
	if p.Email != "" {
		userIDs = append(userIDs, p.Email)
	}

	query := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("form_id = ?", formID)

	cond := db.Where("principal_type = ? AND principal_id IN ?", models.PrincipalTypeUser, userIDs)
	if len(p.Roles) > 0 {
		cond = cond.Or("principal_type = ? AND principal_id IN ?", models.PrincipalTypeRole, p.Roles)
	}
	if len(p.Groups) > 0 {
		cond = cond.Or("principal_type = ? AND principal_id IN ?", models.PrincipalTypeGroup, p.Groups)
	}

	var rows []models.FormsAcl
	if err := query.Where(cond).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CheckPermission resolves whether the principal holds a single permission on
// the form.
func CheckPermission(db *gorm.DB, form *models.Form, p Principal, permission string) (bool, error) {
	perms, err := EffectivePermissions(db, form, p)
	if err != nil {
		return false, err
	}
	return perms[permission], nil
}

// RequireFormAccess loads the form and asserts the permission. When the
// principal cannot even read the form, the denial is reported as NotFound so
// the existence of a private form is not disclosed.
func RequireFormAccess(db *gorm.DB, formID uint64, p Principal, permission string) (*models.Form, error) {
	var form models.Form
	if err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		First(&form, "form_id = ?", formID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFound(fmt.Sprintf("Form '%d' not found", formID), "forms.notfound")
		}
		return nil, types.NewInternal(err.Error(), "forms.load")
	}

	perms, err := EffectivePermissions(db, &form, p)
	if err != nil {
		return nil, err
	}
	if perms[permission] {
		return &form, nil
	}
	if !perms[models.PermissionRead] {
		return nil, types.NewNotFound(fmt.Sprintf("Form '%d' not found", formID), "forms.notfound")
	}
	return nil, types.NewForbidden(fmt.Sprintf("Missing %s permission on form '%d'", permission, formID), "forms.authorization")
}

// ReadableFormIDs computes the set of published forms the principal may read:
// open forms plus forms with a matching READ grant. Admins read everything
// published.
func ReadableFormIDs(db *gorm.DB, p Principal) ([]uint64, error) {
	if p.UserID == "" {
		return nil, nil
	}

	var forms []models.Form
	if err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("is_published = ?", true).Find(&forms).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "acl.readable")
	}

	ids := make([]uint64, 0, len(forms))
	for i := range forms {
		perms, err := EffectivePermissions(db, &forms[i], p)
		if err != nil {
			return nil, err
		}
		if perms[models.PermissionRead] {
			ids = append(ids, forms[i].FormID)
		}
	}
	return ids, nil
}

// ListAcl returns every ACL row on the form. Requires MANAGE_ACL.
func ListAcl(db *gorm.DB, p Principal, formID uint64) ([]models.FormsAcl, error) {
	if _, err := RequireFormAccess(db, formID, p, models.PermissionManageAcl); err != nil {
		return nil, err
	}

	var rows []models.FormsAcl
	if err := db.Where("form_id = ?", formID).
		Order("principal_type, principal_id").Find(&rows).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "acl.list")
	}
	return rows, nil
}

// GrantAcl creates a new ACL row for a principal on the form. A second row
// for the same principal is a Conflict; callers update the existing row
// instead.
func GrantAcl(db *gorm.DB, p Principal, formID uint64, input AclInput) (*models.FormsAcl, error) {
	if err := validate.Struct(input); err != nil {
		return nil, types.NewInvalidArgument(err.Error(), "acl.validation.input")
	}

	if _, err := RequireFormAccess(db, formID, p, models.PermissionManageAcl); err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.FormsAcl{}).
		Where("form_id = ? AND principal_type = ? AND principal_id = ?",
			formID, input.PrincipalType, input.PrincipalID).
		Count(&count).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "acl.grant")
	}
	if count > 0 {
		return nil, types.NewConflict(
			fmt.Sprintf("ACL entry for %s '%s' already exists", input.PrincipalType, input.PrincipalID),
			"acl.duplicate")
	}

	permsJSON, err := json.Marshal(input.Permissions)
	if err != nil {
		return nil, types.NewInternal(err.Error(), "acl.grant")
	}

	row := models.FormsAcl{
		FormID:        formID,
		PrincipalType: input.PrincipalType,
		PrincipalID:   input.PrincipalID,
		Permissions:   permsJSON,
		CreatedBy:     p.UserID,
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "acl.grant")
	}
	return &row, nil
}

// UpdateAcl replaces the permission set on an existing ACL row.
func UpdateAcl(db *gorm.DB, p Principal, formID, aclID uint64, permissions []string) (*models.FormsAcl, error) {
	if len(permissions) == 0 {
		return nil, types.NewInvalidArgument("permissions must not be empty", "acl.validation.input")
	}
	for _, perm := range permissions {
		if !validPermission(perm) {
			return nil, types.NewInvalidArgument(fmt.Sprintf("unknown permission '%s'", perm), "acl.validation.input")
		}
	}

	if _, err := RequireFormAccess(db, formID, p, models.PermissionManageAcl); err != nil {
		return nil, err
	}

	var row models.FormsAcl
	if err := db.First(&row, "acl_id = ? AND form_id = ?", aclID, formID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFound("ACL entry not found", "acl.notfound")
		}
		return nil, types.NewInternal(err.Error(), "acl.update")
	}

	permsJSON, err := json.Marshal(permissions)
	if err != nil {
		return nil, types.NewInternal(err.Error(), "acl.update")
	}
	if err := db.Model(&row).Update("permissions", permsJSON).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "acl.update")
	}
	return &row, nil
}

// RevokeAcl removes an ACL row.
func RevokeAcl(db *gorm.DB, p Principal, formID, aclID uint64) error {
	if _, err := RequireFormAccess(db, formID, p, models.PermissionManageAcl); err != nil {
		return err
	}

	result := db.Delete(&models.FormsAcl{}, "acl_id = ? AND form_id = ?", aclID, formID)
	if result.Error != nil {
		return types.NewInternal(result.Error.Error(), "acl.revoke")
	}
	if result.RowsAffected == 0 {
		return types.NewNotFound("ACL entry not found", "acl.notfound")
	}
	return nil
}

func validPermission(perm string) bool {
	for _, p := range allPermissions {
		if p == perm {
			return true
		}
	}
	return false
}
