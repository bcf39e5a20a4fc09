// relation.go
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

package types

// Relation is one stored link value. Reference fields fill FormID/EntryID,
// entity reference fields fill EntityKind/EntityID. Label is optional display
// text captured at link time.
type Relation struct {
	FormID     uint64 `json:"formId,omitempty"`
	EntryID    string `json:"entryId,omitempty"`
	EntityKind string `json:"entityKind,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
	Label      string `json:"label,omitempty"`
}

// IsZero reports whether the relation carries no target at all.
func (r Relation) IsZero() bool {
	return r.EntryID == "" && r.EntityID == "" && r.FormID == 0 && r.EntityKind == "" && r.Label == ""
}

// Matches reports whether the relation points at the given external entity.
func (r Relation) Matches(entityKind, entityID string) bool {
	return r.EntityKind == entityKind && r.EntityID == entityID
}
