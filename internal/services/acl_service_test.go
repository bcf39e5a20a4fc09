package services

import (
	"testing"

	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectivePermissionsOwnerAndAdmin(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Private", true)

	for _, p := range []Principal{owner, adminUser} {
		perms, err := EffectivePermissions(db, form, p)
		require.NoError(t, err)
		for _, perm := range allPermissions {
			assert.Truef(t, perms[perm], "%s should hold %s", p.UserID, perm)
		}
	}
}

func TestEffectivePermissionsOpenForm(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Open", false)

	perms, err := EffectivePermissions(db, form, stranger)
	require.NoError(t, err)
	assert.True(t, perms[models.PermissionRead])
	assert.True(t, perms[models.PermissionWrite])
	assert.False(t, perms[models.PermissionDelete])
	assert.False(t, perms[models.PermissionManageAcl])
}

func TestEffectivePermissionsUnion(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Layered", true)

	// READ by role, WRITE by group, DELETE direct by email
	grants := []AclInput{
		{PrincipalType: models.PrincipalTypeRole, PrincipalID: "inspector", Permissions: []string{models.PermissionRead}},
		{PrincipalType: models.PrincipalTypeGroup, PrincipalID: "harbor-crew", Permissions: []string{models.PermissionWrite}},
		{PrincipalType: models.PrincipalTypeUser, PrincipalID: "worker@example.com", Permissions: []string{models.PermissionDelete}},
	}
	for _, g := range grants {
		_, err := GrantAcl(db, owner, form.FormID, g)
		require.NoError(t, err)
	}

	worker := Principal{
		UserID: "worker-1",
		Email:  "worker@example.com",
		Roles:  []string{"inspector"},
		Groups: []string{"harbor-crew"},
	}

	perms, err := EffectivePermissions(db, form, worker)
	require.NoError(t, err)
	assert.True(t, perms[models.PermissionRead])
	assert.True(t, perms[models.PermissionWrite])
	assert.True(t, perms[models.PermissionDelete])
	assert.False(t, perms[models.PermissionManageAcl])

	// A principal matching none of the rows gets nothing
	perms, err = EffectivePermissions(db, form, stranger)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestRequireFormAccessHidesPrivateForms(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Hidden", true)

	// No READ at all: denial reads as not found, not forbidden
	_, err := RequireFormAccess(db, form.FormID, stranger, models.PermissionRead)
	assert.True(t, types.IsNotFound(err))

	// READ but not WRITE: forbidden, existence already known
	_, err = GrantAcl(db, owner, form.FormID, AclInput{
		PrincipalType: models.PrincipalTypeUser,
		PrincipalID:   reader.UserID,
		Permissions:   []string{models.PermissionRead},
	})
	require.NoError(t, err)

	_, err = RequireFormAccess(db, form.FormID, reader, models.PermissionWrite)
	require.Error(t, err)
	custom, ok := types.AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, 403, custom.Code)

	_, err = RequireFormAccess(db, uint64(99999), owner, models.PermissionRead)
	assert.True(t, types.IsNotFound(err))
}

func TestGrantAclDuplicateConflict(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Granted", true)

	input := AclInput{
		PrincipalType: models.PrincipalTypeUser,
		PrincipalID:   reader.UserID,
		Permissions:   []string{models.PermissionRead},
	}
	_, err := GrantAcl(db, owner, form.FormID, input)
	require.NoError(t, err)

	_, err = GrantAcl(db, owner, form.FormID, input)
	require.Error(t, err)
	custom, ok := types.AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, 409, custom.Code)
}

func TestGrantAclRequiresManagePermission(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Locked", true)

	_, err := GrantAcl(db, stranger, form.FormID, AclInput{
		PrincipalType: models.PrincipalTypeUser,
		PrincipalID:   "someone",
		Permissions:   []string{models.PermissionRead},
	})
	assert.True(t, types.IsNotFound(err))
}

func TestUpdateAndRevokeAcl(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Mutable", true)

	row, err := GrantAcl(db, owner, form.FormID, AclInput{
		PrincipalType: models.PrincipalTypeRole,
		PrincipalID:   "inspector",
		Permissions:   []string{models.PermissionRead},
	})
	require.NoError(t, err)

	inspector := Principal{UserID: "insp-1", Roles: []string{"inspector"}}

	perms, err := EffectivePermissions(db, form, inspector)
	require.NoError(t, err)
	assert.False(t, perms[models.PermissionWrite])

	_, err = UpdateAcl(db, owner, form.FormID, row.AclID,
		[]string{models.PermissionRead, models.PermissionWrite})
	require.NoError(t, err)

	perms, err = EffectivePermissions(db, form, inspector)
	require.NoError(t, err)
	assert.True(t, perms[models.PermissionWrite])

	_, err = UpdateAcl(db, owner, form.FormID, row.AclID, []string{"SUDO"})
	require.Error(t, err)

	require.NoError(t, RevokeAcl(db, owner, form.FormID, row.AclID))
	assert.True(t, types.IsNotFound(RevokeAcl(db, owner, form.FormID, row.AclID)))

	perms, err = EffectivePermissions(db, form, inspector)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestResolveScopeMode(t *testing.T) {
	assert.Equal(t, ScopeNone, ResolveScopeMode(Principal{}, "list"))
	assert.Equal(t, ScopeAll, ResolveScopeMode(adminUser, "delete"))
	assert.Equal(t, ScopeOwn, ResolveScopeMode(owner, "delete"))
	assert.Equal(t, ScopeAll, ResolveScopeMode(owner, "list"))
}

func TestReadableFormIDs(t *testing.T) {
	db := setupTestDB(t)
	open := createTestForm(t, db, owner, "Open", false)
	restricted := createTestForm(t, db, owner, "Restricted", true)

	// Unpublished forms never appear
	_, err := CreateForm(db, owner, FormInput{Name: "Draft Only"})
	require.NoError(t, err)

	ids, err := ReadableFormIDs(db, stranger)
	require.NoError(t, err)
	assert.Equal(t, []uint64{open.FormID}, ids)

	ids, err = ReadableFormIDs(db, adminUser)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{open.FormID, restricted.FormID}, ids)

	ids, err = ReadableFormIDs(db, Principal{})
	require.NoError(t, err)
	assert.Empty(t, ids)
}
