// reference.go
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

package services

import (
	"encoding/json"

	"github.com/localnerve/jam-build-formsdb/internal/types"
)

// Relation values are stored in single-or-array shape depending on the
// field's multi flag. Every consumer works on the normalized list; the
// single/multi collapse happens only here, at the storage boundary.

// Display placeholders when a relation has neither label nor id.
const (
	placeholderReference = "Reference"
	placeholderEntity    = "Entity"
)

// NormalizeRelations converts a stored field value to a list regardless of
// multi/single mode: arrays are used as-is, a single object becomes a
// one-element list, anything else is empty.
func NormalizeRelations(value interface{}) []types.Relation {
	if value == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}

	var list types.FlexList[types.Relation]
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}

	out := list.Slice()[:0]
	for _, rel := range list {
		if !rel.IsZero() {
			out = append(out, rel)
		}
	}
	return out
}

// CollapseRelations converts a relation list back to its stored shape: multi
// mode stores the list verbatim, single mode stores the first element or nil.
func CollapseRelations(list []types.Relation, multi bool) interface{} {
	if multi {
		if list == nil {
			return []types.Relation{}
		}
		return list
	}
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// DisplayLabel resolves the rendering text for a relation: explicit label,
// then target id, then a literal placeholder.
func DisplayLabel(rel types.Relation, isEntity bool) string {
	if rel.Label != "" {
		return rel.Label
	}
	if isEntity {
		if rel.EntityID != "" {
			return rel.EntityID
		}
		return placeholderEntity
	}
	if rel.EntryID != "" {
		return rel.EntryID
	}
	return placeholderReference
}
