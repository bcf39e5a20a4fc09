// common.go
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
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-formsdb/internal/services"
	"github.com/localnerve/jam-build-formsdb/internal/types"
)

// parseID reads a numeric path parameter.
func parseID(c *fiber.Ctx, name string) (uint64, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, types.NewInvalidArgument("Invalid "+name+" '"+raw+"'", "request.params")
	}
	return id, nil
}

// parseListInput builds the entry listing parameters from query args.
func parseListInput(c *fiber.Ctx) services.ListEntriesInput {
	input := services.ListEntriesInput{
		Page:        c.QueryInt("page", 1),
		PageSize:    c.QueryInt("pageSize", 25),
		Search:      c.Query("search"),
		SortBy:      c.Query("sortBy", "createdAt"),
		SortOrder:   c.Query("sortOrder", "desc"),
		PreferDraft: c.QueryBool("draft", false),
	}

	kind := c.Query("linkedEntityKind")
	id := c.Query("linkedEntityId")
	fieldKey := c.Query("linkedFieldKey")
	if kind != "" || id != "" || fieldKey != "" {
		input.Linked = &services.LinkedFilter{
			EntityKind: kind,
			EntityID:   id,
			FieldKey:   fieldKey,
		}
	}

	return input
}
