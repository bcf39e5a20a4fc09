package models

import (
	"time"

	"gorm.io/datatypes"
)

// ACL principal types.
const (
	PrincipalTypeUser  = "user"
	PrincipalTypeGroup = "group"
	PrincipalTypeRole  = "role"
)

// ACL permissions.
const (
	PermissionRead      = "READ"
	PermissionWrite     = "WRITE"
	PermissionDelete    = "DELETE"
	PermissionManageAcl = "MANAGE_ACL"
)

// FormsAcl grants a set of permissions on a form to one principal. A form has
// at most one row per (principalType, principalId); the effective permission
// set of a caller is the union across all rows matching any of its identities.
type FormsAcl struct {
	AclID         uint64         `gorm:"primaryKey;autoIncrement"`
	FormID        uint64         `gorm:"not null;index:idx_form_principal,unique"`
	PrincipalType string         `gorm:"size:16;not null;index:idx_form_principal,unique"`
	PrincipalID   string         `gorm:"size:255;not null;index:idx_form_principal,unique"`
	Permissions   datatypes.JSON `gorm:"not null"`
	CreatedBy     string         `gorm:"type:char(36)"`
	CreatedAt     time.Time
}

// TableName overrides the table name for FormsAcl
func (FormsAcl) TableName() string {
	return "forms_acl"
}
