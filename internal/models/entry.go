// entry.go
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

package models

import (
	"time"

	"gorm.io/datatypes"
)

// History change types.
const (
	ChangeTypeUpdate = "update"
	ChangeTypeDelete = "delete"
)

// FormEntry is one record of data loosely conforming to a form's field list.
// Data is an opaque JSON object keyed by field key; SearchText is denormalized
// from Data on every write.
type FormEntry struct {
	EntryID         string `gorm:"type:char(36);primaryKey"`
	FormID          uint64 `gorm:"not null;index"`
	CreatedByUserID string `gorm:"type:char(36);not null"`
	UpdatedByUserID string `gorm:"type:char(36)"`
	Data            datatypes.JSON
	SearchText      string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FormEntryHistory is an append-only snapshot of an entry's data as it was
// BEFORE an update or delete. Rows are never mutated or removed.
type FormEntryHistory struct {
	HistoryID       string `gorm:"type:char(36);primaryKey"`
	EntryID         string `gorm:"type:char(36);not null;index"`
	FormID          uint64 `gorm:"not null;index"`
	Version         int    `gorm:"not null"`
	ChangedByUserID string `gorm:"type:char(36)"`
	ChangeType      string `gorm:"size:16;not null"`
	Snapshot        datatypes.JSON
	CreatedAt       time.Time
}

// TableName overrides the table name for FormEntry
func (FormEntry) TableName() string {
	return "form_entries"
}

// TableName overrides the table name for FormEntryHistory
func (FormEntryHistory) TableName() string {
	return "form_entry_history"
}
