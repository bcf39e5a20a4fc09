// linked.go
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
	"gorm.io/gorm"
)

// LinkedHandler answers linked-form discovery for entity detail pages
type LinkedHandler struct {
	DB *gorm.DB
}

// FindLinkedForms handles GET /api/linked/:entityKind/:entityId
// @Summary Find linked forms
// @Description List the readable forms whose entries reference the entity, with match counts
// @Tags Linked
// @Produce json
// @Param entityKind path string true "Entity kind"
// @Param entityId path string true "Entity ID"
// @Success 200 {array} services.LinkedForm
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /linked/{entityKind}/{entityId} [get]
func (h *LinkedHandler) FindLinkedForms(c *fiber.Ctx) error {
	results, err := services.FindLinkedForms(
		h.DB, middleware.GetPrincipal(c), c.Params("entityKind"), c.Params("entityId"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(results)
}
