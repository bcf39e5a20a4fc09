package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-formsdb/internal/handlers"
	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/services"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
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

// setupTestApp wires the entry routes behind a fixed principal and the
// production error handler.
func setupTestApp(db *gorm.DB, p services.Principal) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := err.Error()
			var customErr *types.CustomError
			if errors.As(err, &customErr) {
				code = customErr.Code
				message = customErr.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"status":    code,
				"message":   message,
				"ok":        false,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"url":       c.OriginalURL(),
			})
		},
	})

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("principal", p)
		return c.Next()
	})

	handler := &handlers.EntriesHandler{DB: db}
	app.Get("/api/forms/:formId/entries", handler.ListEntries)
	app.Post("/api/forms/:formId/entries", handler.CreateEntry)
	app.Get("/api/forms/:formId/entries/:entryId", handler.GetEntry)
	app.Put("/api/forms/:formId/entries/:entryId", handler.UpdateEntry)
	app.Delete("/api/forms/:formId/entries/:entryId", handler.DeleteEntry)
	app.Get("/api/forms/:formId/entries/:entryId/history", handler.ListEntryHistory)

	return app
}

// seedForm creates a published form with a title field and returns it.
func seedForm(t *testing.T, db *gorm.DB, p services.Principal) *models.Form {
	t.Helper()

	form, err := services.CreateForm(db, p, services.FormInput{Name: "Tickets"})
	if err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}
	_, err = services.AddField(db, p, form.FormID, services.FieldInput{
		Key: "title", Label: "Title", Type: models.FieldTypeText, Order: 1, Required: true,
	})
	if err != nil {
		t.Fatalf("Failed to add field: %v", err)
	}
	if _, err := services.PublishForm(db, p, form.FormID); err != nil {
		t.Fatalf("Failed to publish form: %v", err)
	}
	return form
}

// TestEntryLifecycle exercises create, get, update, history and delete
// through the HTTP surface
func TestEntryLifecycle(t *testing.T) {
	db := setupTestDB(t)
	p := services.Principal{UserID: "user-1", Email: "user@example.com", Roles: []string{"user"}}
	form := seedForm(t, db, p)
	app := setupTestApp(db, p)

	base := "/api/forms/" + itoa(form.FormID) + "/entries"

	// Create
	body, _ := json.Marshal(map[string]interface{}{"title": "Leaky pipe"})
	req := httptest.NewRequest("POST", base, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var created models.FormEntry
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.EntryID == "" {
		t.Fatal("Expected entry id to be assigned")
	}

	// Get
	resp, err = app.Test(httptest.NewRequest("GET", base+"/"+created.EntryID, nil))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	// Update
	body, _ = json.Marshal(map[string]interface{}{"title": "Fixed pipe"})
	req = httptest.NewRequest("PUT", base+"/"+created.EntryID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	// History holds the pre-update snapshot
	resp, err = app.Test(httptest.NewRequest("GET", base+"/"+created.EntryID+"/history", nil))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	var history []models.FormEntryHistory
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 history row, got %d", len(history))
	}
	if history[0].ChangeType != models.ChangeTypeUpdate {
		t.Errorf("Expected change type update, got %s", history[0].ChangeType)
	}

	// Delete
	resp, err = app.Test(httptest.NewRequest("DELETE", base+"/"+created.EntryID, nil))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 204 {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}

	// Gone
	resp, err = app.Test(httptest.NewRequest("GET", base+"/"+created.EntryID, nil))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

// TestCreateEntryValidationError checks the error envelope shape
func TestCreateEntryValidationError(t *testing.T) {
	db := setupTestDB(t)
	p := services.Principal{UserID: "user-1", Roles: []string{"user"}}
	form := seedForm(t, db, p)
	app := setupTestApp(db, p)

	// Missing required title
	body, _ := json.Marshal(map[string]interface{}{"other": "x"})
	req := httptest.NewRequest("POST", "/api/forms/"+itoa(form.FormID)+"/entries", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}

	var envelope map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode error envelope: %v", err)
	}
	if ok, _ := envelope["ok"].(bool); ok {
		t.Error("Expected ok=false in error envelope")
	}
	if envelope["message"] == "" {
		t.Error("Expected a message in error envelope")
	}
}

// TestListEntriesBadFormID checks numeric path param validation
func TestListEntriesBadFormID(t *testing.T) {
	db := setupTestDB(t)
	p := services.Principal{UserID: "user-1", Roles: []string{"user"}}
	app := setupTestApp(db, p)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/forms/abc/entries", nil))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
