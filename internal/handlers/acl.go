// acl.go
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

// AclHandler handles per-form access control routes
type AclHandler struct {
	DB *gorm.DB
}

// ListAcl handles GET /api/forms/:formId/acl
// @Summary List ACL rows
// @Description List the form's access control rows; requires MANAGE_ACL
// @Tags ACL
// @Produce json
// @Param formId path int true "Form ID"
// @Success 200 {array} models.FormsAcl
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/acl [get]
func (h *AclHandler) ListAcl(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	rows, err := services.ListAcl(h.DB, middleware.GetPrincipal(c), formID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(rows)
}

// GrantAcl handles POST /api/forms/:formId/acl
// @Summary Grant permissions
// @Description Grant a principal permissions on the form; requires MANAGE_ACL
// @Tags ACL
// @Accept json
// @Produce json
// @Param formId path int true "Form ID"
// @Param grant body services.AclInput true "Principal and permissions"
// @Success 201 {object} models.FormsAcl
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/acl [post]
func (h *AclHandler) GrantAcl(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}

	var input services.AclInput
	if err := c.BodyParser(&input); err != nil {
		return types.NewInvalidArgument("Invalid request body", "acl.body")
	}

	row, err := services.GrantAcl(h.DB, middleware.GetPrincipal(c), formID, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(row)
}

// UpdateAcl handles PUT /api/forms/:formId/acl/:aclId
// @Summary Update granted permissions
// @Description Replace the permission set of an existing ACL row; requires MANAGE_ACL
// @Tags ACL
// @Accept json
// @Produce json
// @Param formId path int true "Form ID"
// @Param aclId path int true "ACL row ID"
// @Param permissions body handlers.AclPermissionsInput true "New permission set"
// @Success 200 {object} models.FormsAcl
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/acl/{aclId} [put]
func (h *AclHandler) UpdateAcl(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}
	aclID, err := parseID(c, "aclId")
	if err != nil {
		return err
	}

	var input AclPermissionsInput
	if err := c.BodyParser(&input); err != nil {
		return types.NewInvalidArgument("Invalid request body", "acl.body")
	}

	row, err := services.UpdateAcl(h.DB, middleware.GetPrincipal(c), formID, aclID, input.Permissions)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(row)
}

// RevokeAcl handles DELETE /api/forms/:formId/acl/:aclId
// @Summary Revoke permissions
// @Description Remove an ACL row; requires MANAGE_ACL
// @Tags ACL
// @Produce json
// @Param formId path int true "Form ID"
// @Param aclId path int true "ACL row ID"
// @Success 204
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{formId}/acl/{aclId} [delete]
func (h *AclHandler) RevokeAcl(c *fiber.Ctx) error {
	formID, err := parseID(c, "formId")
	if err != nil {
		return err
	}
	aclID, err := parseID(c, "aclId")
	if err != nil {
		return err
	}

	if err := services.RevokeAcl(h.DB, middleware.GetPrincipal(c), formID, aclID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AclPermissionsInput is the body for permission updates
type AclPermissionsInput struct {
	Permissions []string `json:"permissions"`
}
