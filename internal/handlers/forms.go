// forms.go
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
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-formsdb/internal/jobs"
	"github.com/localnerve/jam-build-formsdb/internal/middleware"
	"github.com/localnerve/jam-build-formsdb/internal/services"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"gorm.io/gorm"
)

// FormsHandler handles form definition routes
type FormsHandler struct {
	DB *gorm.DB
}

// ListForms handles GET /api/forms
// @Summary List forms
// @Description List the forms the caller can read, in navigation order
// @Tags Forms
// @Produce json
// @Success 200 {array} models.Form
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /forms [get]
func (h *FormsHandler) ListForms(c *fiber.Ctx) error {
	forms, err := services.ListForms(h.DB, middleware.GetPrincipal(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(forms)
}

// CreateForm handles POST /api/forms
// @Summary Create a form
// @Description Create a form with an initial draft version; the caller becomes owner
// @Tags Forms
// @Accept json
// @Produce json
// @Param form body services.FormInput true "Form definition"
// @Success 201 {object} models.Form
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /forms [post]
func (h *FormsHandler) CreateForm(c *fiber.Ctx) error {
	var input services.FormInput
	if err := c.BodyParser(&input); err != nil {
		return types.NewInvalidArgument("Invalid request body", "forms.body")
	}

	form, err := services.CreateForm(h.DB, middleware.GetPrincipal(c), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(form)
}

// GetForm handles GET /api/forms/:formId
// @Summary Get a form
// @Description Get a form with its current draft and published versions and live fields
// @Tags Forms
// @Produce json
// @Param formId path int true "Form ID"
// @Param draft query bool false "Prefer the draft version when the caller can write"
// @Success 200 {object} services.FormDetail
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId} [get]
func (h *FormsHandler) GetForm(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	detail, err := services.GetForm(h.DB, middleware.GetPrincipal(c), formID, c.QueryBool("draft", false))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(detail)
}

// UpdateForm handles PUT /api/forms/:formId
// @Summary Update a form
// @Description Update form metadata and the draft list configuration
// @Tags Forms
// @Accept json
// @Produce json
// @Param formId path int true "Form ID"
// @Param form body services.FormInput true "Form definition"
// @Success 200 {object} models.Form
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId} [put]
func (h *FormsHandler) UpdateForm(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	var input services.FormInput
	if err := c.BodyParser(&input); err != nil {
		return types.NewInvalidArgument("Invalid request body", "forms.body")
	}

	form, err := services.UpdateForm(h.DB, middleware.GetPrincipal(c), formID, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(form)
}

// DeleteForm handles DELETE /api/forms/:formId
// @Summary Delete a form
// @Description Delete a form and all of its versions, fields, entries, history and ACLs
// @Tags Forms
// @Produce json
// @Param formId path int true "Form ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId} [delete]
func (h *FormsHandler) DeleteForm(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	if err := services.DeleteForm(h.DB, middleware.GetPrincipal(c), formID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PublishForm handles POST /api/forms/:formId/publish
// @Summary Publish a form
// @Description Promote the current draft to a new published version and rebuild entry search text
// @Tags Forms
// @Produce json
// @Param formId path int true "Form ID"
// @Success 200 {object} models.FormVersion
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/publish [post]
func (h *FormsHandler) PublishForm(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	version, err := services.PublishForm(h.DB, middleware.GetPrincipal(c), formID)
	if err != nil {
		return err
	}

	if !jobs.EnqueueReindexForm(formID) {
		// No queue configured, rebuild inline
		if _, err := services.ReindexForm(h.DB, formID); err != nil {
			log.Printf("Inline reindex failed for form %d: %v", formID, err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(version)
}

// GetFormSchema handles GET /api/forms/:formId/schema
// @Summary Get form schema
// @Description Machine-readable schema and endpoint map for external integrations
// @Tags Forms
// @Produce json
// @Param formId path int true "Form ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/schema [get]
func (h *FormsHandler) GetFormSchema(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	schema, err := services.FormSchema(h.DB, middleware.GetPrincipal(c), formID)
	if err != nil {
		return err
	}
	schema["apiVersion"] = middleware.ApiVersion(c)
	return c.Status(fiber.StatusOK).JSON(schema)
}

// AddField handles POST /api/forms/:formId/fields
// @Summary Add a field
// @Description Add a field to the form's current draft version
// @Tags Fields
// @Accept json
// @Produce json
// @Param formId path int true "Form ID"
// @Param field body services.FieldInput true "Field definition"
// @Success 201 {object} models.FormField
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/fields [post]
func (h *FormsHandler) AddField(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	var input services.FieldInput
	if err := c.BodyParser(&input); err != nil {
		return types.NewInvalidArgument("Invalid request body", "fields.body")
	}

	field, err := services.AddField(h.DB, middleware.GetPrincipal(c), formID, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(field)
}

// UpdateField handles PUT /api/forms/:formId/fields/:fieldId
// @Summary Update a field
// @Description Update a field on the form's current draft version
// @Tags Fields
// @Accept json
// @Produce json
// @Param formId path int true "Form ID"
// @Param fieldId path int true "Field ID"
// @Param field body services.FieldInput true "Field definition"
// @Success 200 {object} models.FormField
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/fields/{fieldId} [put]
func (h *FormsHandler) UpdateField(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}
	fieldID, err := parseID(c, "fieldId")
	if err != nil {
		return err
	}

	var input services.FieldInput
	if err := c.BodyParser(&input); err != nil {
		return types.NewInvalidArgument("Invalid request body", "fields.body")
	}

	field, err := services.UpdateField(h.DB, middleware.GetPrincipal(c), formID, fieldID, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(field)
}

// DeleteField handles DELETE /api/forms/:formId/fields/:fieldId
// @Summary Delete a field
// @Description Remove a field from the form's current draft version
// @Tags Fields
// @Produce json
// @Param formId path int true "Form ID"
// @Param fieldId path int true "Field ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/fields/{fieldId} [delete]
func (h *FormsHandler) DeleteField(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}
	fieldID, err := parseID(c, "fieldId")
	if err != nil {
		return err
	}

	if err := services.DeleteField(h.DB, middleware.GetPrincipal(c), formID, fieldID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReorderFields handles POST /api/forms/:formId/fields/reorder
// @Summary Reorder fields
// @Description Reorder the draft version's fields to match the given id list
// @Tags Fields
// @Accept json
// @Produce json
// @Param formId path int true "Form ID"
// @Param order body handlers.ReorderInput true "Ordered field ids"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/fields/reorder [post]
func (h *FormsHandler) ReorderFields(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	var input ReorderInput
	if err := c.BodyParser(&input); err != nil {
		return types.NewInvalidArgument("Invalid request body", "fields.body")
	}

	if err := services.ReorderFields(h.DB, middleware.GetPrincipal(c), formID, input.FieldIDs); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReorderInput is the body for field reordering
type ReorderInput struct {
	FieldIDs []uint64 `json:"fieldIds"`
}
