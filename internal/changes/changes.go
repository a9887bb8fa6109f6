// Package changes defines the batched change-set submitted against a report
// outline and its two-pass validation: a structural pass over the raw payload
// and a semantic pass against the current outline state.
//
// Validation accumulates every problem into one error list instead of failing
// on the first, so an automated caller can fix everything in a single round
// trip. Free-form payload maps never flow past this package: the service and
// apply engine only see a decoded ChangeSet.
package changes

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/briefkit/brief/internal/outline"
)

// InsightSpec describes one insight to add.
type InsightSpec struct {
	InsightID  string                  `json:"insight_id,omitempty"`
	Summary    string                  `json:"summary"`
	Importance *int                    `json:"importance"`
	Status     string                  `json:"status,omitempty"`
	Citations  []outline.DatasetSource `json:"citations,omitempty"`
	Metadata   map[string]any          `json:"metadata,omitempty"`
	SectionIDs []string                `json:"section_ids,omitempty"`
}

// InsightPatch is a partial update keyed by insight id. Nil fields keep
// their prior values; Citations, when present, replaces the whole list and
// Metadata is merged key by key.
type InsightPatch struct {
	InsightID  string                  `json:"insight_id"`
	Summary    *string                 `json:"summary,omitempty"`
	Importance *int                    `json:"importance,omitempty"`
	Status     *string                 `json:"status,omitempty"`
	Citations  []outline.DatasetSource `json:"citations,omitempty"`
	Metadata   map[string]any          `json:"metadata,omitempty"`
}

// SectionSpec describes one section to add.
type SectionSpec struct {
	SectionID     string   `json:"section_id,omitempty"`
	Title         string   `json:"title"`
	Order         *int     `json:"order,omitempty"`
	InsightIDs    []string `json:"insight_ids,omitempty"`
	Content       string   `json:"content,omitempty"`
	ContentFormat string   `json:"content_format,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// SectionPatch is a partial update keyed by section id. InsightIDs, when
// present, replaces the whole reference list; the ToAdd/ToRemove variants
// edit it incrementally instead.
type SectionPatch struct {
	SectionID          string   `json:"section_id"`
	Title              *string  `json:"title,omitempty"`
	Order              *int     `json:"order,omitempty"`
	InsightIDs         []string `json:"insight_ids,omitempty"`
	InsightIDsToAdd    []string `json:"insight_ids_to_add,omitempty"`
	InsightIDsToRemove []string `json:"insight_ids_to_remove,omitempty"`
	Content            *string  `json:"content,omitempty"`
	ContentFormat      *string  `json:"content_format,omitempty"`
	Notes              *string  `json:"notes,omitempty"`
}

// ChangeSet is one batch of proposed changes. Every field is optional; an
// empty batch is a legal no-op.
type ChangeSet struct {
	InsightsToAdd    []InsightSpec  `json:"insights_to_add,omitempty"`
	InsightsToModify []InsightPatch `json:"insights_to_modify,omitempty"`
	InsightsToRemove []string       `json:"insights_to_remove,omitempty"`
	SectionsToAdd    []SectionSpec  `json:"sections_to_add,omitempty"`
	SectionsToModify []SectionPatch `json:"sections_to_modify,omitempty"`
	SectionsToRemove []string       `json:"sections_to_remove,omitempty"`
	TitleChange      *string        `json:"title_change,omitempty"`
	StatusChange     *string        `json:"status_change,omitempty"`
	MetadataUpdates  map[string]any `json:"metadata_updates,omitempty"`
}

// Empty reports whether the batch proposes nothing.
func (c *ChangeSet) Empty() bool {
	return len(c.InsightsToAdd) == 0 && len(c.InsightsToModify) == 0 && len(c.InsightsToRemove) == 0 &&
		len(c.SectionsToAdd) == 0 && len(c.SectionsToModify) == 0 && len(c.SectionsToRemove) == 0 &&
		c.TitleChange == nil && c.StatusChange == nil && len(c.MetadataUpdates) == 0
}

// Code is a machine-readable validation error category.
type Code string

// Validation error codes.
const (
	CodeMalformedUUID       Code = "malformed_uuid"
	CodeOutOfRange          Code = "out_of_range"
	CodeMissingField        Code = "missing_field"
	CodeInvalidValue        Code = "invalid_value"
	CodeDuplicateID         Code = "duplicate_id"
	CodeNotFound            Code = "not_found"
	CodeMissingCitation     Code = "missing_citation"
	CodeUnresolvedCitation  Code = "unresolved_citation"
	CodeConflict            Code = "conflict"
)

// ValidationError is one structured validation failure.
type ValidationError struct {
	Code    Code   `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

// Messages renders an error list as human-readable strings.
func Messages(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

var topLevelKeys = []string{
	"insights_to_add", "insights_to_modify", "insights_to_remove",
	"sections_to_add", "sections_to_modify", "sections_to_remove",
	"title_change", "status_change", "metadata_updates",
}

// Common near-miss spellings of real field names, mapped to the likely
// intended key. Matches produce advisory warnings, never hard failures.
var keyAliases = map[string]string{
	"insights":           "insights_to_add",
	"add_insights":       "insights_to_add",
	"new_insights":       "insights_to_add",
	"insights_to_update": "insights_to_modify",
	"modify_insights":    "insights_to_modify",
	"insights_to_delete": "insights_to_remove",
	"remove_insights":    "insights_to_remove",
	"sections":           "sections_to_add",
	"add_sections":       "sections_to_add",
	"new_sections":       "sections_to_add",
	"sections_to_update": "sections_to_modify",
	"modify_sections":    "sections_to_modify",
	"sections_to_delete": "sections_to_remove",
	"remove_sections":    "sections_to_remove",
	"title":              "title_change",
	"new_title":          "title_change",
	"status":             "status_change",
	"metadata":           "metadata_updates",
	"metadata_update":    "metadata_updates",
}

// Decode turns a raw payload map into a ChangeSet. Structural type errors
// found by the embedded JSON schema are returned as validation errors;
// unrecognized top-level keys become warnings, with a "did you mean" hint
// when the key is a known near-miss spelling.
func Decode(raw map[string]any) (*ChangeSet, []string, []ValidationError) {
	var warnings []string
	known := make(map[string]bool, len(topLevelKeys))
	for _, k := range topLevelKeys {
		known[k] = true
	}
	var unknown []string
	for k := range raw {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		if intended, ok := keyAliases[k]; ok {
			warnings = append(warnings, fmt.Sprintf("unrecognized key %q: did you mean %q?", k, intended))
		} else {
			warnings = append(warnings, fmt.Sprintf("unrecognized key %q ignored", k))
		}
	}

	if errs := validateRawSchema(raw); len(errs) > 0 {
		return nil, warnings, errs
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, warnings, []ValidationError{{
			Code: CodeInvalidValue, Field: "changes", Message: fmt.Sprintf("payload not serializable: %v", err),
		}}
	}
	var cs ChangeSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, warnings, []ValidationError{{
			Code: CodeInvalidValue, Field: "changes", Message: fmt.Sprintf("payload does not match change schema: %v", err),
		}}
	}
	return &cs, warnings, nil
}
