// linked_service.go
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
	"fmt"
	"sort"

	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LinkedForm is one (form, field) pair able to reference the queried entity,
// with the number of entries that currently do.
type LinkedForm struct {
	FormID         uint64 `json:"formId"`
	FormName       string `json:"formName"`
	FormSlug       string `json:"formSlug"`
	EntityFieldKey string `json:"entityFieldKey"`
	Count          int64  `json:"count"`
}

// FindLinkedForms answers "which forms can link this entity": for every form
// the caller can read, every published entity_reference field whose
// configured kind matches gets a result row with the number of entries
// containing the relation, zero included. Results are ordered by form name
// then field key.
func FindLinkedForms(db *gorm.DB, p Principal, entityKind, entityID string) ([]LinkedForm, error) {
	if !IsSafeKey(entityKind) || !IsSafeKey(entityID) {
		return nil, types.NewInvalidArgument("Invalid entity reference", "linked.validation")
	}

	formIDs, err := ReadableFormIDs(db, p)
	if err != nil {
		return nil, err
	}
	if len(formIDs) == 0 {
		return []LinkedForm{}, nil
	}

	silent := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})

	var forms []models.Form
	if err := silent.Where("form_id IN ?", formIDs).Find(&forms).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "linked.forms")
	}
	formByID := make(map[uint64]models.Form, len(forms))
	for _, f := range forms {
		formByID[f.FormID] = f
	}

	// One pass for the latest published version of every readable form,
	// chosen by version number. Row ids happen to increase with versions
	// today, but backfilled rows would break that coupling.
	var versions []models.FormVersion
	if err := silent.
		Where("form_id IN ? AND status = ?", formIDs, models.VersionStatusPublished).
		Find(&versions).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "linked.versions")
	}
	latest := make(map[uint64]models.FormVersion, len(versions))
	for _, v := range versions {
		if cur, ok := latest[v.FormID]; !ok || v.Version > cur.Version {
			latest[v.FormID] = v
		}
	}
	if len(latest) == 0 {
		return []LinkedForm{}, nil
	}

	versionIDs := make([]uint64, 0, len(latest))
	formByVersion := make(map[uint64]uint64, len(latest))
	for _, v := range latest {
		versionIDs = append(versionIDs, v.VersionID)
		formByVersion[v.VersionID] = v.FormID
	}

	var fields []models.FormField
	if err := silent.Where("version_id IN ? AND type = ?", versionIDs, models.FieldTypeEntityReference).
		Order("field_order").Find(&fields).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "linked.fields")
	}

	results := []LinkedForm{}
	for _, field := range fields {
		if FieldEntityKind(field) != entityKind || !IsSafeKey(field.Key) {
			continue
		}
		formID := formByVersion[field.VersionID]
		form, ok := formByID[formID]
		if !ok {
			continue
		}

		count, err := countLinkedEntries(silent, formID, field.Key, entityKind, entityID)
		if err != nil {
			return nil, err
		}

		results = append(results, LinkedForm{
			FormID:         formID,
			FormName:       form.Name,
			FormSlug:       form.Slug,
			EntityFieldKey: field.Key,
			Count:          count,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FormName != results[j].FormName {
			return results[i].FormName < results[j].FormName
		}
		return results[i].EntityFieldKey < results[j].EntityFieldKey
	})

	return results, nil
}

// countLinkedEntries counts the form's entries whose field contains the
// relation, natively where the dialect can express containment.
func countLinkedEntries(db *gorm.DB, formID uint64, fieldKey, entityKind, entityID string) (int64, error) {
	cond, args, native := relationPredicate(db, fieldKey, entityKind, entityID)
	if native {
		var count int64
		if err := db.Model(&models.FormEntry{}).
			Where("form_id = ?", formID).Where(cond, args...).
			Count(&count).Error; err != nil {
			return 0, types.NewInternal(err.Error(), "linked.count")
		}
		return count, nil
	}

	var entries []models.FormEntry
	if err := db.Where("form_id = ?", formID).Find(&entries).Error; err != nil {
		return 0, types.NewInternal(err.Error(), "linked.count")
	}
	return int64(len(filterLinkedEntries(entries, fieldKey, entityKind, entityID))), nil
}

// relationPredicate builds a JSON containment condition for entries whose
// data[fieldKey] holds the relation, as a single object or inside an array.
// fieldKey must already be safe-key validated; it is interpolated into a JSON
// path fragment. native is false when the dialect has no containment
// operator and the caller must filter in application code.
func relationPredicate(db *gorm.DB, fieldKey, entityKind, entityID string) (cond string, args []interface{}, native bool) {
	probe, _ := json.Marshal(types.Relation{EntityKind: entityKind, EntityID: entityID})

	switch db.Dialector.Name() {
	case "postgres":
		// Match both stored shapes: a bare relation object and an array of
		// relation objects.
		path := fmt.Sprintf("data -> '%s'", fieldKey)
		cond = fmt.Sprintf("(%s @> ?::jsonb OR %s @> ?::jsonb)", path, path)
		args = []interface{}{string(probe), "[" + string(probe) + "]"}
		return cond, args, true
	case "mysql":
		// JSON_CONTAINS treats a candidate object as contained by a matching
		// object and by an array holding one, covering both stored shapes.
		path := fmt.Sprintf(`$."%s"`, fieldKey)
		cond = "JSON_CONTAINS(JSON_EXTRACT(data, ?), ?)"
		args = []interface{}{path, string(probe)}
		return cond, args, true
	default:
		return "", nil, false
	}
}
