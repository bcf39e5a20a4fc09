package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/localnerve/jam-build-formsdb/internal/config"
	"github.com/localnerve/jam-build-formsdb/internal/database"
	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/services"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

var (
	adminUser = services.Principal{UserID: "admin-1", Roles: []string{"admin"}}
	owner     = services.Principal{UserID: "owner-1", Email: "owner@example.com", Roles: []string{"user"}}
)

// TestWithMariaDB tests the service with a real MariaDB container
func TestWithMariaDB(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	image := os.Getenv("DB_IMAGE")
	if image == "" {
		image = "mariadb:11"
	}

	mariadbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "rootpass",
				"MYSQL_DATABASE":      "testdb",
				"MYSQL_USER":          "testuser",
				"MYSQL_PASSWORD":      "testpass",
			},
			WaitingFor: wait.ForLog("ready for connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MariaDB container: %v", err)
	}
	defer func() {
		if err := mariadbContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate MariaDB container: %v", err)
		}
	}()

	host, err := mariadbContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := mariadbContainer.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DBType:            "mysql",
		DBHost:            host,
		DBPort:            port.Port(),
		DBDatabase:        "testdb",
		DBUser:            "testuser",
		DBPassword:        "testpass",
		DBConnectionLimit: 5,
	}

	// Wait for database to be ready
	time.Sleep(5 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	runSuite(t, db)
}

// TestWithPostgreSQL tests the service with a real PostgreSQL container
func TestWithPostgreSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	image := os.Getenv("POSTGRES_IMAGE")
	if image == "" {
		image = "postgres:16"
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_USER":     "testuser",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DBType:            "postgres",
		DBHost:            host,
		DBPort:            port.Port(),
		DBDatabase:        "testdb",
		DBUser:            "testuser",
		DBPassword:        "testpass",
		DBConnectionLimit: 5,
	}

	// Wait for database to be ready
	time.Sleep(2 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	runSuite(t, db)
}

func runSuite(t *testing.T, db *gorm.DB) {
	t.Run("FormLifecycle", func(t *testing.T) {
		testFormLifecycle(t, db)
	})

	t.Run("EntryHistoryVersions", func(t *testing.T) {
		testEntryHistoryVersions(t, db)
	})

	t.Run("LinkedEntityContainment", func(t *testing.T) {
		testLinkedEntityContainment(t, db)
	})
}

// testFormLifecycle creates, publishes and deletes a form against a real
// database
func testFormLifecycle(t *testing.T, db *gorm.DB) {
	form, err := services.CreateForm(db, owner, services.FormInput{Name: "Integration Lifecycle"})
	if err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}

	_, err = services.AddField(db, owner, form.FormID, services.FieldInput{
		Key: "title", Label: "Title", Type: models.FieldTypeText, Order: 1, Required: true,
	})
	if err != nil {
		t.Fatalf("Failed to add field: %v", err)
	}

	published, err := services.PublishForm(db, owner, form.FormID)
	if err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	if published.Version != 2 {
		t.Errorf("Expected published version 2, got %d", published.Version)
	}

	if err := services.DeleteForm(db, owner, form.FormID); err != nil {
		t.Fatalf("Failed to delete form: %v", err)
	}

	var count int64
	db.Model(&models.FormVersion{}).Where("form_id = ?", form.FormID).Count(&count)
	if count != 0 {
		t.Errorf("Expected versions cascaded, found %d", count)
	}
}

// testEntryHistoryVersions checks sequential history versions under a real
// transaction-capable database
func testEntryHistoryVersions(t *testing.T, db *gorm.DB) {
	form, err := services.CreateForm(db, owner, services.FormInput{Name: "Integration History"})
	if err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}
	_, err = services.AddField(db, owner, form.FormID, services.FieldInput{
		Key: "note", Label: "Note", Type: models.FieldTypeText, Order: 1,
	})
	if err != nil {
		t.Fatalf("Failed to add field: %v", err)
	}
	if _, err := services.PublishForm(db, owner, form.FormID); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	entry, err := services.CreateEntry(db, owner, form.FormID, map[string]interface{}{"note": "v1"})
	if err != nil {
		t.Fatalf("Failed to create entry: %v", err)
	}
	for _, next := range []string{"v2", "v3", "v4"} {
		if _, err := services.UpdateEntry(db, owner, form.FormID, entry.EntryID,
			map[string]interface{}{"note": next}); err != nil {
			t.Fatalf("Failed to update entry: %v", err)
		}
	}

	history, err := services.ListEntryHistory(db, owner, form.FormID, entry.EntryID)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 history rows, got %d", len(history))
	}
	for i, row := range history {
		if row.Version != i+1 {
			t.Errorf("Expected version %d at index %d, got %d", i+1, i, row.Version)
		}
	}
}

// testLinkedEntityContainment exercises the native JSON containment
// predicates of MySQL and PostgreSQL
func testLinkedEntityContainment(t *testing.T, db *gorm.DB) {
	form, err := services.CreateForm(db, owner, services.FormInput{Name: "Integration Linked"})
	if err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}
	_, err = services.AddField(db, owner, form.FormID, services.FieldInput{
		Key: "project", Label: "Project", Type: models.FieldTypeEntityReference, Order: 1,
		Config: []byte(`{"entity":{"kind":"project","multi":true}}`),
	})
	if err != nil {
		t.Fatalf("Failed to add field: %v", err)
	}
	if _, err := services.PublishForm(db, owner, form.FormID); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	linked := map[string]interface{}{
		"project": []interface{}{
			map[string]interface{}{"entityKind": "project", "entityId": "int-p-1", "label": "One"},
			map[string]interface{}{"entityKind": "project", "entityId": "int-p-2"},
		},
	}
	if _, err := services.CreateEntry(db, owner, form.FormID, linked); err != nil {
		t.Fatalf("Failed to create linked entry: %v", err)
	}
	if _, err := services.CreateEntry(db, owner, form.FormID, map[string]interface{}{
		"project": map[string]interface{}{"entityKind": "project", "entityId": "int-p-3"},
	}); err != nil {
		t.Fatalf("Failed to create single-link entry: %v", err)
	}

	results, err := services.FindLinkedForms(db, adminUser, "project", "int-p-1")
	if err != nil {
		t.Fatalf("Failed to find linked forms: %v", err)
	}

	found := false
	for _, r := range results {
		if r.FormID == form.FormID && r.EntityFieldKey == "project" {
			found = true
			if r.Count != 1 {
				t.Errorf("Expected count 1 for int-p-1, got %d", r.Count)
			}
		}
	}
	if !found {
		t.Error("Expected the form in linked results")
	}

	// The single-object stored shape must match too
	page, err := services.ListEntries(db, adminUser, form.FormID, services.ListEntriesInput{
		Linked: &services.LinkedFilter{EntityKind: "project", EntityID: "int-p-3", FieldKey: "project"},
	})
	if err != nil {
		t.Fatalf("Failed to list linked entries: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Expected 1 entry linked to int-p-3, got %d", page.Total)
	}
}
