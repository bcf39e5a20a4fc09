package services

import (
	"testing"

	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Form{},
		&models.FormVersion{},
		&models.FormField{},
		&models.FormEntry{},
		&models.FormEntryHistory{},
		&models.FormsAcl{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

var (
	adminUser = Principal{UserID: "admin-1", Email: "admin@example.com", Roles: []string{"admin"}}
	owner     = Principal{UserID: "owner-1", Email: "owner@example.com", Roles: []string{"user"}}
	reader    = Principal{UserID: "reader-1", Email: "reader@example.com", Roles: []string{"user"}}
	stranger  = Principal{UserID: "stranger-1", Email: "stranger@example.com", Roles: []string{"user"}}
)

// createTestForm creates a form with standard fields and publishes it.
func createTestForm(t *testing.T, db *gorm.DB, p Principal, name string, aclEnabled bool) *models.Form {
	t.Helper()

	form, err := CreateForm(db, p, FormInput{Name: name, AclEnabled: aclEnabled})
	require.NoError(t, err)

	fields := []FieldInput{
		{Key: "title", Label: "Title", Type: models.FieldTypeText, Order: 1, Required: true, ShowInTable: true},
		{Key: "amount", Label: "Amount", Type: models.FieldTypeNumber, Order: 2},
		{Key: "project", Label: "Project", Type: models.FieldTypeEntityReference, Order: 3,
			Config: []byte(`{"entity":{"kind":"project","multi":false}}`)},
		{Key: "owners", Label: "Owners", Type: models.FieldTypeEntityReference, Order: 4,
			Config: []byte(`{"entity":{"kind":"project","multi":true}}`)},
	}
	for _, f := range fields {
		_, err := AddField(db, p, form.FormID, f)
		require.NoError(t, err)
	}

	_, err = PublishForm(db, p, form.FormID)
	require.NoError(t, err)

	return form
}

func TestCreateFormCreatesDraftVersion(t *testing.T) {
	db := setupTestDB(t)

	form, err := CreateForm(db, owner, FormInput{Name: "Site Surveys"})
	require.NoError(t, err)
	assert.Equal(t, "site-surveys", form.Slug)
	assert.Equal(t, owner.UserID, form.OwnerUserID)
	assert.False(t, form.IsPublished)

	draft, err := CurrentVersion(db, form.FormID, models.VersionStatusDraft)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, 1, draft.Version)

	published, err := CurrentVersion(db, form.FormID, models.VersionStatusPublished)
	require.NoError(t, err)
	assert.Nil(t, published)
}

func TestCreateFormDuplicateSlug(t *testing.T) {
	db := setupTestDB(t)

	_, err := CreateForm(db, owner, FormInput{Name: "Inspections"})
	require.NoError(t, err)

	_, err = CreateForm(db, owner, FormInput{Name: "Inspections"})
	require.Error(t, err)
	custom, ok := types.AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, 409, custom.Code)
}

func TestCreateFormRejectsAnonymous(t *testing.T) {
	db := setupTestDB(t)

	_, err := CreateForm(db, Principal{}, FormInput{Name: "Nope"})
	require.Error(t, err)
	custom, ok := types.AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, 401, custom.Code)
}

func TestPublishFormSnapshotsFields(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Audits", false)

	published, err := CurrentVersion(db, form.FormID, models.VersionStatusPublished)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, 2, published.Version)

	publishedFields, err := VersionFields(db, published.VersionID)
	require.NoError(t, err)
	assert.Len(t, publishedFields, 4)

	// Mutating the draft afterwards must not change the published snapshot
	draft, err := CurrentVersion(db, form.FormID, models.VersionStatusDraft)
	require.NoError(t, err)
	draftFields, err := VersionFields(db, draft.VersionID)
	require.NoError(t, err)
	require.NoError(t, DeleteField(db, owner, form.FormID, draftFields[0].FieldID))

	publishedFields, err = VersionFields(db, published.VersionID)
	require.NoError(t, err)
	assert.Len(t, publishedFields, 4)
}

func TestPublishIncrementsVersion(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Reviews", false)

	v2, err := PublishForm(db, owner, form.FormID)
	require.NoError(t, err)
	assert.Equal(t, 3, v2.Version)

	published, err := CurrentVersion(db, form.FormID, models.VersionStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, published.VersionID)
}

func TestGetFormPrefersDraftForWriters(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Checklists", false)

	// Add a draft-only field after publish
	_, err := AddField(db, owner, form.FormID, FieldInput{
		Key: "notes", Label: "Notes", Type: models.FieldTypeTextarea, Order: 9,
	})
	require.NoError(t, err)

	detail, err := GetForm(db, owner, form.FormID, true)
	require.NoError(t, err)
	assert.Len(t, detail.Fields, 5)

	detail, err = GetForm(db, owner, form.FormID, false)
	require.NoError(t, err)
	assert.Len(t, detail.Fields, 4)
}

func TestListFormsVisibility(t *testing.T) {
	db := setupTestDB(t)
	createTestForm(t, db, owner, "Open Form", false)
	restricted := createTestForm(t, db, owner, "Restricted Form", true)

	// Owner sees both
	forms, err := ListForms(db, owner)
	require.NoError(t, err)
	assert.Len(t, forms, 2)

	// A stranger sees only the open one
	forms, err = ListForms(db, stranger)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, "Open Form", forms[0].Name)

	// A READ grant exposes the restricted form
	_, err = GrantAcl(db, owner, restricted.FormID, AclInput{
		PrincipalType: models.PrincipalTypeUser,
		PrincipalID:   reader.UserID,
		Permissions:   []string{models.PermissionRead},
	})
	require.NoError(t, err)

	forms, err = ListForms(db, reader)
	require.NoError(t, err)
	assert.Len(t, forms, 2)

	// Anonymous sees nothing
	forms, err = ListForms(db, Principal{})
	require.NoError(t, err)
	assert.Empty(t, forms)
}

func TestUpdateFormSlugConflict(t *testing.T) {
	db := setupTestDB(t)
	createTestForm(t, db, owner, "Alpha", false)
	beta := createTestForm(t, db, owner, "Beta", false)

	_, err := UpdateForm(db, owner, beta.FormID, FormInput{Name: "Beta", Slug: "alpha"})
	require.Error(t, err)
	custom, ok := types.AsCustomError(err)
	require.True(t, ok)
	assert.Equal(t, 409, custom.Code)
}

func TestDeleteFormCascades(t *testing.T) {
	db := setupTestDB(t)
	form := createTestForm(t, db, owner, "Doomed", false)

	entry, err := CreateEntry(db, owner, form.FormID, map[string]interface{}{"title": "will vanish"})
	require.NoError(t, err)
	_, err = UpdateEntry(db, owner, form.FormID, entry.EntryID, map[string]interface{}{"title": "still here"})
	require.NoError(t, err)

	require.NoError(t, DeleteForm(db, owner, form.FormID))

	for _, probe := range []struct {
		name  string
		model interface{}
	}{
		{"versions", &models.FormVersion{}},
		{"fields", &models.FormField{}},
		{"entries", &models.FormEntry{}},
		{"history", &models.FormEntryHistory{}},
		{"acl", &models.FormsAcl{}},
	} {
		var count int64
		require.NoError(t, db.Model(probe.model).Where("form_id = ?", form.FormID).Count(&count).Error)
		assert.Zerof(t, count, "%s not cascaded", probe.name)
	}

	_, err = GetForm(db, owner, form.FormID, false)
	assert.True(t, types.IsNotFound(err))
}

func TestFormSchemaRequiresPublished(t *testing.T) {
	db := setupTestDB(t)

	form, err := CreateForm(db, owner, FormInput{Name: "Unpublished"})
	require.NoError(t, err)

	_, err = FormSchema(db, owner, form.FormID)
	assert.True(t, types.IsNotFound(err))

	published := createTestForm(t, db, owner, "Published", false)
	schema, err := FormSchema(db, owner, published.FormID)
	require.NoError(t, err)
	assert.Contains(t, schema, "fields")
	assert.Contains(t, schema, "endpoints")
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "site-surveys", Slugify("Site Surveys"))
	assert.Equal(t, "a-b-c", Slugify("  A  b---C "))
	assert.Equal(t, "2024-audit", Slugify("2024 Audit!"))
	assert.Equal(t, "", Slugify("???"))
}
