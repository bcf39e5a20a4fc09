// entry_service.go
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
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/localnerve/jam-build-formsdb/internal/models"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// LinkedFilter restricts a listing to entries whose entity_reference field
// links a specific external entity. All three parts must be present together.
type LinkedFilter struct {
	EntityKind string
	EntityID   string
	FieldKey   string
}

// ListEntriesInput carries the listing parameters.
type ListEntriesInput struct {
	Page        int
	PageSize    int
	Search      string
	SortBy      string // createdAt or updatedAt
	SortOrder   string // asc or desc
	Linked      *LinkedFilter
	PreferDraft bool
}

// EntriesPage is the listing result: one page of entries plus the live field
// schema and list configuration the caller renders against.
type EntriesPage struct {
	Entries    []models.FormEntry `json:"entries"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	Fields     []models.FormField `json:"fields"`
	ListConfig json.RawMessage    `json:"listConfig,omitempty"`
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// ListEntries returns a page of entries for the form. Regular callers list
// against the published version; callers holding WRITE may preview the draft.
func ListEntries(db *gorm.DB, p Principal, formID uint64, input ListEntriesInput) (*EntriesPage, error) {
	if ResolveScopeMode(p, "list") == ScopeNone {
		return &EntriesPage{Entries: []models.FormEntry{}, Page: 1, PageSize: defaultPageSize}, nil
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	sortBy := input.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		return nil, types.NewInvalidArgument(fmt.Sprintf("Invalid sortBy '%s'", input.SortBy), "entries.validation.sort")
	}
	order := "DESC"
	if strings.EqualFold(input.SortOrder, "asc") {
		order = "ASC"
	}

	form, err := RequireFormAccess(db, formID, p, models.PermissionRead)
	if err != nil {
		return nil, err
	}

	live, fields, err := liveVersionFields(db, form, p, input.PreferDraft)
	if err != nil {
		return nil, err
	}

	var linkedField *models.FormField
	if input.Linked != nil {
		linkedField, err = validateLinkedFilter(fields, *input.Linked)
		if err != nil {
			return nil, err
		}
	}

	query := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Model(&models.FormEntry{}).Where("form_id = ?", formID)
	if input.Search != "" {
		query = query.Where("search_text LIKE ?", "%"+strings.ToLower(input.Search)+"%")
	}

	result := &EntriesPage{
		Page:       page,
		PageSize:   pageSize,
		Fields:     fields,
		ListConfig: json.RawMessage(live.ListConfig),
	}

	if linkedField != nil {
		cond, args, native := relationPredicate(db, linkedField.Key, input.Linked.EntityKind, input.Linked.EntityID)
		if native {
			query = query.Where(cond, args...)
		} else {
			// The dialect has no JSON containment operator. Filter in
			// application code through the same normalization the native
			// predicate expresses.
			var all []models.FormEntry
			if err := query.Order("created_at DESC").Find(&all).Error; err != nil {
				return nil, types.NewInternal(err.Error(), "entries.list")
			}
			matched := filterLinkedEntries(all, linkedField.Key, input.Linked.EntityKind, input.Linked.EntityID)
			sortEntries(matched, column, order)
			result.Total = int64(len(matched))
			start := (page - 1) * pageSize
			if start > len(matched) {
				start = len(matched)
			}
			end := start + pageSize
			if end > len(matched) {
				end = len(matched)
			}
			result.Entries = matched[start:end]
			return result, nil
		}
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "entries.list")
	}

	if err := query.Order(column + " " + order).
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&result.Entries).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "entries.list")
	}
	if result.Entries == nil {
		result.Entries = []models.FormEntry{}
	}

	return result, nil
}

// GetEntry loads one entry.
func GetEntry(db *gorm.DB, p Principal, formID uint64, entryID string) (*models.FormEntry, error) {
	if _, err := RequireFormAccess(db, formID, p, models.PermissionRead); err != nil {
		return nil, err
	}

	var entry models.FormEntry
	if err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		First(&entry, "entry_id = ? AND form_id = ?", entryID, formID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFound(fmt.Sprintf("Entry '%s' not found", entryID), "entries.notfound")
		}
		return nil, types.NewInternal(err.Error(), "entries.get")
	}
	return &entry, nil
}

// CreateEntry validates the payload against the live field schema, assigns an
// id, computes the search text and persists the row.
func CreateEntry(db *gorm.DB, p Principal, formID uint64, data map[string]interface{}) (*models.FormEntry, error) {
	if data == nil {
		return nil, types.NewInvalidArgument("Invalid input", "entries.validation.input")
	}

	form, err := RequireFormAccess(db, formID, p, models.PermissionWrite)
	if err != nil {
		return nil, err
	}

	_, fields, err := liveVersionFields(db, form, p, false)
	if err != nil {
		return nil, err
	}

	if err := validateEntryData(fields, data); err != nil {
		return nil, err
	}
	normalizeRelationFields(fields, data)

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, types.NewInvalidArgument("Invalid input", "entries.validation.input")
	}

	entry := models.FormEntry{
		EntryID:         uuid.NewString(),
		FormID:          formID,
		CreatedByUserID: p.UserID,
		UpdatedByUserID: p.UserID,
		Data:            raw,
		SearchText:      ComputeSearchText(data),
	}
	if err := db.Create(&entry).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "entries.create")
	}
	return &entry, nil
}

// UpdateEntry overwrites the entry's data. The pre-change state is snapshot
// into history FIRST, inside the same transaction; when the snapshot cannot
// be written the mutation does not happen.
func UpdateEntry(db *gorm.DB, p Principal, formID uint64, entryID string, data map[string]interface{}) (*models.FormEntry, error) {
	if data == nil {
		return nil, types.NewInvalidArgument("Invalid input", "entries.validation.input")
	}

	form, err := RequireFormAccess(db, formID, p, models.PermissionWrite)
	if err != nil {
		return nil, err
	}

	_, fields, err := liveVersionFields(db, form, p, false)
	if err != nil {
		return nil, err
	}
	if err := validateEntryData(fields, data); err != nil {
		return nil, err
	}
	normalizeRelationFields(fields, data)

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, types.NewInvalidArgument("Invalid input", "entries.validation.input")
	}

	var entry models.FormEntry
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&entry, "entry_id = ? AND form_id = ?", entryID, formID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFound(fmt.Sprintf("Entry '%s' not found", entryID), "entries.notfound")
			}
			return err
		}

		if err := writeHistory(tx, &entry, p.UserID, models.ChangeTypeUpdate); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"data":               raw,
			"search_text":        ComputeSearchText(data),
			"updated_by_user_id": p.UserID,
		}
		return tx.Model(&entry).Updates(updates).Error
	})
	if err != nil {
		if _, ok := types.AsCustomError(err); ok {
			return nil, err
		}
		return nil, types.NewInternal(err.Error(), "entries.update")
	}

	return &entry, nil
}

// DeleteEntry snapshots the entry into history, then removes it. Callers with
// DELETE permission remove any entry; callers with only WRITE remove their
// own (own scope).
func DeleteEntry(db *gorm.DB, p Principal, formID uint64, entryID string) error {
	form, err := RequireFormAccess(db, formID, p, models.PermissionRead)
	if err != nil {
		return err
	}

	perms, err := EffectivePermissions(db, form, p)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var entry models.FormEntry
		if err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&entry, "entry_id = ? AND form_id = ?", entryID, formID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFound(fmt.Sprintf("Entry '%s' not found", entryID), "entries.notfound")
			}
			return types.NewInternal(err.Error(), "entries.delete")
		}

		if !perms[models.PermissionDelete] {
			ownScope := ResolveScopeMode(p, "delete") == ScopeOwn &&
				perms[models.PermissionWrite] && entry.CreatedByUserID == p.UserID
			if !ownScope {
				return types.NewForbidden("Missing DELETE permission", "entries.authorization")
			}
		}

		if err := writeHistory(tx, &entry, p.UserID, models.ChangeTypeDelete); err != nil {
			return err
		}

		if err := tx.Delete(&models.FormEntry{}, "entry_id = ?", entryID).Error; err != nil {
			return types.NewInternal(err.Error(), "entries.delete")
		}
		return nil
	})
}

// ListEntryHistory returns the entry's audit trail, oldest first.
func ListEntryHistory(db *gorm.DB, p Principal, formID uint64, entryID string) ([]models.FormEntryHistory, error) {
	if _, err := RequireFormAccess(db, formID, p, models.PermissionRead); err != nil {
		return nil, err
	}

	var rows []models.FormEntryHistory
	if err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("entry_id = ? AND form_id = ?", entryID, formID).
		Order("version").Find(&rows).Error; err != nil {
		return nil, types.NewInternal(err.Error(), "entries.history")
	}
	return rows, nil
}

// ReindexForm recomputes the search text of every entry of the form. Used by
// the background worker after a publish.
func ReindexForm(db *gorm.DB, formID uint64) (int64, error) {
	var entries []models.FormEntry
	if err := db.Where("form_id = ?", formID).Find(&entries).Error; err != nil {
		return 0, err
	}

	var updated int64
	for i := range entries {
		var data map[string]interface{}
		if err := json.Unmarshal(entries[i].Data, &data); err != nil {
			continue
		}
		text := ComputeSearchText(data)
		if text == entries[i].SearchText {
			continue
		}
		if err := db.Model(&entries[i]).Update("search_text", text).Error; err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// ComputeSearchText denormalizes an entry's data into a flat, lowercased
// string for LIKE search: every top-level scalar, plus the label of every
// relation-shaped object (single or in an array). Keys are walked in sorted
// order so the result is deterministic.
func ComputeSearchText(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	appendPart := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			appendPart(v)
		case float64:
			appendPart(strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			appendPart(strconv.FormatBool(v))
		case map[string]interface{}:
			if label, ok := v["label"].(string); ok {
				appendPart(label)
			}
		case []interface{}:
			for _, item := range v {
				if obj, ok := item.(map[string]interface{}); ok {
					if label, ok := obj["label"].(string); ok {
						appendPart(label)
					}
				}
			}
		}
	}

	return strings.ToLower(strings.Join(parts, " "))
}

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// writeHistory appends the pre-change snapshot. Version numbers are the count
// of existing history rows plus one.
func writeHistory(tx *gorm.DB, entry *models.FormEntry, userID, changeType string) error {
	var count int64
	if err := tx.Model(&models.FormEntryHistory{}).
		Where("entry_id = ?", entry.EntryID).Count(&count).Error; err != nil {
		return err
	}

	row := models.FormEntryHistory{
		HistoryID:       uuid.NewString(),
		EntryID:         entry.EntryID,
		FormID:          entry.FormID,
		Version:         int(count) + 1,
		ChangedByUserID: userID,
		ChangeType:      changeType,
		Snapshot:        entry.Data,
	}
	return tx.Create(&row).Error
}

// liveVersionFields resolves the version and field list an operation runs
// against. Published is the default; draft preview requires WRITE.
func liveVersionFields(db *gorm.DB, form *models.Form, p Principal, preferDraft bool) (*models.FormVersion, []models.FormField, error) {
	status := models.VersionStatusPublished
	if preferDraft {
		canWrite, err := CheckPermission(db, form, p, models.PermissionWrite)
		if err != nil {
			return nil, nil, err
		}
		if canWrite {
			status = models.VersionStatusDraft
		}
	}

	live, err := CurrentVersion(db, form.FormID, status)
	if err != nil {
		return nil, nil, err
	}
	if live == nil && status == models.VersionStatusPublished {
		// Owners and admins can work against the draft before first publish
		canWrite, err := CheckPermission(db, form, p, models.PermissionWrite)
		if err != nil {
			return nil, nil, err
		}
		if canWrite {
			live, err = CurrentVersion(db, form.FormID, models.VersionStatusDraft)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	if live == nil {
		return nil, nil, types.NewNotFound(fmt.Sprintf("Form '%d' has no published version", form.FormID), "forms.notpublished")
	}

	fields, err := VersionFields(db, live.VersionID)
	if err != nil {
		return nil, nil, err
	}
	return live, fields, nil
}

// validateLinkedFilter resolves the filter's field key against the live
// schema and asserts it is an entity_reference targeting the filter's kind.
func validateLinkedFilter(fields []models.FormField, lf LinkedFilter) (*models.FormField, error) {
	if lf.EntityKind == "" || lf.EntityID == "" || lf.FieldKey == "" {
		return nil, types.NewInvalidArgument(
			"linked filter requires entityKind, entityId and fieldKey together", "entries.validation.linked")
	}
	if !IsSafeKey(lf.EntityKind) || !IsSafeKey(lf.EntityID) || !IsSafeKey(lf.FieldKey) {
		return nil, types.NewInvalidArgument("Invalid linked filter value", "entries.validation.linked")
	}

	for i := range fields {
		if fields[i].Key != lf.FieldKey {
			continue
		}
		if FieldEntityKind(fields[i]) != lf.EntityKind {
			break
		}
		return &fields[i], nil
	}
	return nil, types.NewInvalidArgument(
		fmt.Sprintf("'%s' is not a valid entity_reference field for kind '%s'", lf.FieldKey, lf.EntityKind),
		"entries.validation.linked")
}

// validateEntryData is the runtime validation pass over the live field list.
func validateEntryData(fields []models.FormField, data map[string]interface{}) error {
	for _, f := range fields {
		if !f.Required {
			continue
		}
		v, present := data[f.Key]
		if !present || v == nil {
			return types.NewInvalidArgument(fmt.Sprintf("Field '%s' is required", f.Key), "entries.validation.required")
		}
		if s, ok := v.(string); ok && s == "" {
			return types.NewInvalidArgument(fmt.Sprintf("Field '%s' is required", f.Key), "entries.validation.required")
		}
	}
	return nil
}

// normalizeRelationFields re-collapses reference and entity_reference values
// to their stored shape so single/multi polymorphism is decided in exactly
// one place.
func normalizeRelationFields(fields []models.FormField, data map[string]interface{}) {
	for _, f := range fields {
		if f.Type != models.FieldTypeReference && f.Type != models.FieldTypeEntityReference {
			continue
		}
		v, present := data[f.Key]
		if !present {
			continue
		}
		list := NormalizeRelations(v)
		data[f.Key] = CollapseRelations(list, FieldIsMulti(f))
	}
}

// filterLinkedEntries is the application-side containment fallback.
func filterLinkedEntries(entries []models.FormEntry, fieldKey, entityKind, entityID string) []models.FormEntry {
	matched := make([]models.FormEntry, 0, len(entries))
	for _, e := range entries {
		var data map[string]interface{}
		if err := json.Unmarshal(e.Data, &data); err != nil {
			continue
		}
		for _, rel := range NormalizeRelations(data[fieldKey]) {
			if rel.Matches(entityKind, entityID) {
				matched = append(matched, e)
				break
			}
		}
	}
	return matched
}

// sortEntries orders an application-filtered result the same way the store
// would have.
func sortEntries(entries []models.FormEntry, column, order string) {
	asc := order == "ASC"
	sort.SliceStable(entries, func(i, j int) bool {
		var less bool
		if column == "updated_at" {
			less = entries[i].UpdatedAt.Before(entries[j].UpdatedAt)
		} else {
			less = entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		if asc {
			return less
		}
		return !less
	})
}
