// entries.go
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

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-formsdb/internal/middleware"
	"github.com/localnerve/jam-build-formsdb/internal/services"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"gorm.io/gorm"
)

// EntriesHandler handles form entry routes
type EntriesHandler struct {
	DB *gorm.DB
}

// ListEntries handles GET /api/forms/:formId/entries
// @Summary List entries
// @Description Page through a form's entries with search, sorting and linked-entity filtering
// @Tags Entries
// @Produce json
// @Param formId path int true "Form ID"
// @Param page query int false "Page number, 1-based"
// @Param pageSize query int false "Page size, max 100"
// @Param search query string false "Substring search over denormalized entry text"
// @Param sortBy query string false "createdAt or updatedAt"
// @Param sortOrder query string false "asc or desc"
// @Param linkedEntityKind query string false "Linked entity kind (with linkedEntityId and linkedFieldKey)"
// @Param linkedEntityId query string false "Linked entity id"
// @Param linkedFieldKey query string false "entity_reference field key"
// @Success 200 {object} services.EntriesPage
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/entries [get]
func (h *EntriesHandler) ListEntries(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	page, err := services.ListEntries(h.DB, middleware.GetPrincipal(c), formID, parseListInput(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(page)
}

// GetEntry handles GET /api/forms/:formId/entries/:entryId
// @Summary Get an entry
// @Tags Entries
// @Produce json
// @Param formId path int true "Form ID"
// @Param entryId path string true "Entry ID"
// @Success 200 {object} models.FormEntry
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/entries/{entryId} [get]
func (h *EntriesHandler) GetEntry(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	entry, err := services.GetEntry(h.DB, middleware.GetPrincipal(c), formID, c.Params("entryId"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(entry)
}

// CreateEntry handles POST /api/forms/:formId/entries
// @Summary Create an entry
// @Description Validate the payload against the live field schema and persist it
// @Tags Entries
// @Accept json
// @Produce json
// @Param formId path int true "Form ID"
// @Param data body map[string]interface{} true "Entry data keyed by field key"
// @Success 201 {object} models.FormEntry
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/entries [post]
func (h *EntriesHandler) CreateEntry(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	var data map[string]interface{}
	if err := c.BodyParser(&data); err != nil {
		return types.NewInvalidArgument("Invalid request body", "entries.body")
	}

	entry, err := services.CreateEntry(h.DB, middleware.GetPrincipal(c), formID, data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// UpdateEntry handles PUT /api/forms/:formId/entries/:entryId
// @Summary Update an entry
// @Description Snapshot the current state into history, then overwrite the entry data
// @Tags Entries
// @Accept json
// @Produce json
// @Param formId path int true "Form ID"
// @Param entryId path string true "Entry ID"
// @Param data body map[string]interface{} true "Entry data keyed by field key"
// @Success 200 {object} models.FormEntry
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/entries/{entryId} [put]
func (h *EntriesHandler) UpdateEntry(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	var data map[string]interface{}
	if err := c.BodyParser(&data); err != nil {
		return types.NewInvalidArgument("Invalid request body", "entries.body")
	}

	entry, err := services.UpdateEntry(h.DB, middleware.GetPrincipal(c), formID, c.Params("entryId"), data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(entry)
}

// DeleteEntry handles DELETE /api/forms/:formId/entries/:entryId
// @Summary Delete an entry
// @Description Snapshot the entry into history with change type delete, then remove it
// @Tags Entries
// @Produce json
// @Param formId path int true "Form ID"
// @Param entryId path string true "Entry ID"
// @Success 204
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/entries/{entryId} [delete]
func (h *EntriesHandler) DeleteEntry(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	if err := services.DeleteEntry(h.DB, middleware.GetPrincipal(c), formID, c.Params("entryId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListEntryHistory handles GET /api/forms/:formId/entries/:entryId/history
// @Summary List entry history
// @Description Return the entry's append-only audit trail, oldest first
// @Tags Entries
// @Produce json
// @Param formId path int true "Form ID"
// @Param entryId path string true "Entry ID"
// @Success 200 {array} models.FormEntryHistory
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/entries/{entryId}/history [get]
func (h *EntriesHandler) ListEntryHistory(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	rows, err := services.ListEntryHistory(h.DB, middleware.GetPrincipal(c), formID, c.Params("entryId"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(rows)
}
