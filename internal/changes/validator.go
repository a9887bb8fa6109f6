package changes

import (
	_ "embed"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/briefkit/brief/internal/outline"
)

//go:embed schema.json
var schemaJSON string

// validateRawSchema checks the raw payload's shape against the embedded
// JSON schema. Only type-level problems surface here; field rules with
// better messages are handled in ValidateSchema.
func validateRawSchema(raw map[string]any) []ValidationError {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return []ValidationError{{
			Code: CodeInvalidValue, Field: "changes", Message: fmt.Sprintf("schema check failed: %v", err),
		}}
	}
	if result.Valid() {
		return nil
	}
	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, ValidationError{
			Code:    CodeInvalidValue,
			Field:   schemaErr.Field(),
			Message: schemaErr.Description(),
		})
	}
	return errs
}

// ValidateSchema runs the schema pass: UUID syntax, value ranges, and
// required fields for add operations, none of which need outline state.
// Adds with no caller-supplied id get one generated in place, so the ids
// of a valid batch are known before the semantic pass and the apply step.
func ValidateSchema(cs *ChangeSet) []ValidationError {
	var errs []ValidationError

	for i := range cs.InsightsToAdd {
		spec := &cs.InsightsToAdd[i]
		field := fmt.Sprintf("insights_to_add[%d]", i)
		if spec.InsightID == "" {
			spec.InsightID = uuid.NewString()
		} else if _, err := uuid.Parse(spec.InsightID); err != nil {
			errs = append(errs, ValidationError{CodeMalformedUUID, field + ".insight_id", fmt.Sprintf("%q is not a valid UUID", spec.InsightID)})
		}
		if spec.Summary == "" {
			errs = append(errs, ValidationError{CodeMissingField, field + ".summary", "summary is required for a new insight"})
		}
		if spec.Importance == nil {
			errs = append(errs, ValidationError{CodeMissingField, field + ".importance", "importance is required for a new insight"})
		} else if *spec.Importance < 0 || *spec.Importance > 10 {
			errs = append(errs, ValidationError{CodeOutOfRange, field + ".importance", fmt.Sprintf("importance %d outside range 0-10", *spec.Importance)})
		}
		if spec.Status != "" && spec.Status != outline.InsightActive && spec.Status != outline.InsightArchived && spec.Status != outline.InsightKilled {
			errs = append(errs, ValidationError{CodeInvalidValue, field + ".status", fmt.Sprintf("invalid status %q", spec.Status)})
		}
		for j, ref := range spec.SectionIDs {
			if _, err := uuid.Parse(ref); err != nil {
				errs = append(errs, ValidationError{CodeMalformedUUID, fmt.Sprintf("%s.section_ids[%d]", field, j), fmt.Sprintf("%q is not a valid UUID", ref)})
			}
		}
	}

	for i, patch := range cs.InsightsToModify {
		field := fmt.Sprintf("insights_to_modify[%d]", i)
		if patch.InsightID == "" {
			errs = append(errs, ValidationError{CodeMissingField, field + ".insight_id", "insight_id is required for a modify"})
		} else if _, err := uuid.Parse(patch.InsightID); err != nil {
			errs = append(errs, ValidationError{CodeMalformedUUID, field + ".insight_id", fmt.Sprintf("%q is not a valid UUID", patch.InsightID)})
		}
		if patch.Importance != nil && (*patch.Importance < 0 || *patch.Importance > 10) {
			errs = append(errs, ValidationError{CodeOutOfRange, field + ".importance", fmt.Sprintf("importance %d outside range 0-10", *patch.Importance)})
		}
		if patch.Status != nil && *patch.Status != outline.InsightActive && *patch.Status != outline.InsightArchived && *patch.Status != outline.InsightKilled {
			errs = append(errs, ValidationError{CodeInvalidValue, field + ".status", fmt.Sprintf("invalid status %q", *patch.Status)})
		}
	}

	for i, id := range cs.InsightsToRemove {
		if _, err := uuid.Parse(id); err != nil {
			errs = append(errs, ValidationError{CodeMalformedUUID, fmt.Sprintf("insights_to_remove[%d]", i), fmt.Sprintf("%q is not a valid UUID", id)})
		}
	}

	for i := range cs.SectionsToAdd {
		spec := &cs.SectionsToAdd[i]
		field := fmt.Sprintf("sections_to_add[%d]", i)
		if spec.SectionID == "" {
			spec.SectionID = uuid.NewString()
		} else if _, err := uuid.Parse(spec.SectionID); err != nil {
			errs = append(errs, ValidationError{CodeMalformedUUID, field + ".section_id", fmt.Sprintf("%q is not a valid UUID", spec.SectionID)})
		}
		if spec.Title == "" {
			errs = append(errs, ValidationError{CodeMissingField, field + ".title", "title is required for a new section"})
		}
		if spec.Order != nil && *spec.Order < 0 {
			errs = append(errs, ValidationError{CodeOutOfRange, field + ".order", fmt.Sprintf("order %d must be >= 0", *spec.Order)})
		}
		if spec.ContentFormat != "" && spec.ContentFormat != outline.FormatMarkdown && spec.ContentFormat != outline.FormatHTML && spec.ContentFormat != outline.FormatPlain {
			errs = append(errs, ValidationError{CodeInvalidValue, field + ".content_format", fmt.Sprintf("invalid content_format %q", spec.ContentFormat)})
		}
		for j, ref := range spec.InsightIDs {
			if _, err := uuid.Parse(ref); err != nil {
				errs = append(errs, ValidationError{CodeMalformedUUID, fmt.Sprintf("%s.insight_ids[%d]", field, j), fmt.Sprintf("%q is not a valid UUID", ref)})
			}
		}
	}

	for i, patch := range cs.SectionsToModify {
		field := fmt.Sprintf("sections_to_modify[%d]", i)
		if patch.SectionID == "" {
			errs = append(errs, ValidationError{CodeMissingField, field + ".section_id", "section_id is required for a modify"})
		} else if _, err := uuid.Parse(patch.SectionID); err != nil {
			errs = append(errs, ValidationError{CodeMalformedUUID, field + ".section_id", fmt.Sprintf("%q is not a valid UUID", patch.SectionID)})
		}
		if patch.Order != nil && *patch.Order < 0 {
			errs = append(errs, ValidationError{CodeOutOfRange, field + ".order", fmt.Sprintf("order %d must be >= 0", *patch.Order)})
		}
	}

	for i, id := range cs.SectionsToRemove {
		if _, err := uuid.Parse(id); err != nil {
			errs = append(errs, ValidationError{CodeMalformedUUID, fmt.Sprintf("sections_to_remove[%d]", i), fmt.Sprintf("%q is not a valid UUID", id)})
		}
	}

	if cs.TitleChange != nil && *cs.TitleChange == "" {
		errs = append(errs, ValidationError{CodeInvalidValue, "title_change", "title cannot be empty"})
	}
	if cs.StatusChange != nil && *cs.StatusChange != outline.StatusActive && *cs.StatusChange != outline.StatusArchived {
		errs = append(errs, ValidationError{CodeInvalidValue, "status_change", fmt.Sprintf("invalid status %q", *cs.StatusChange)})
	}

	return errs
}

// CitationResolver checks that a citation points at a recorded query
// execution. Implemented by the query-history store.
type CitationResolver interface {
	Resolve(ctx context.Context, src outline.DatasetSource) (bool, error)
}

// Options controls the semantic pass.
type Options struct {
	// AllowUncited disables the citation requirement for added insights.
	AllowUncited bool
	// Resolver, when set, additionally checks that each citation refers to
	// a known query execution.
	Resolver CitationResolver
}

// ValidateSemantics runs the semantic pass against the current outline.
// ValidateSchema must have run first so generated ids are in place.
func ValidateSemantics(ctx context.Context, o *outline.Outline, cs *ChangeSet, opts Options) []ValidationError {
	var errs []ValidationError

	existingInsights := make(map[string]bool, len(o.Insights))
	for _, in := range o.Insights {
		existingInsights[in.InsightID] = true
	}
	existingSections := make(map[string]bool, len(o.Sections))
	for _, sec := range o.Sections {
		existingSections[sec.SectionID] = true
	}

	removedInsights := make(map[string]bool, len(cs.InsightsToRemove))
	for _, id := range cs.InsightsToRemove {
		removedInsights[id] = true
	}
	addedInsights := make(map[string]bool, len(cs.InsightsToAdd))
	for _, spec := range cs.InsightsToAdd {
		addedInsights[spec.InsightID] = true
	}
	addedSections := make(map[string]bool, len(cs.SectionsToAdd))
	for _, spec := range cs.SectionsToAdd {
		addedSections[spec.SectionID] = true
	}

	// resolvable reports whether an insight id will exist after this batch.
	resolvable := func(id string) bool {
		if removedInsights[id] {
			return false
		}
		return existingInsights[id] || addedInsights[id]
	}

	for i, spec := range cs.InsightsToAdd {
		field := fmt.Sprintf("insights_to_add[%d]", i)
		if existingInsights[spec.InsightID] {
			errs = append(errs, ValidationError{CodeDuplicateID, field + ".insight_id", fmt.Sprintf("insight %s already exists", spec.InsightID)})
		}
		if !opts.AllowUncited {
			cited := false
			for _, c := range spec.Citations {
				if !c.Empty() {
					cited = true
					break
				}
			}
			if !cited {
				errs = append(errs, ValidationError{CodeMissingCitation, field + ".citations", "new insight requires at least one citation"})
			}
		}
		if opts.Resolver != nil {
			for j, c := range spec.Citations {
				if c.Empty() {
					continue
				}
				ok, err := opts.Resolver.Resolve(ctx, c)
				if err != nil {
					errs = append(errs, ValidationError{CodeUnresolvedCitation, fmt.Sprintf("%s.citations[%d]", field, j), fmt.Sprintf("citation lookup failed: %v", err)})
				} else if !ok {
					errs = append(errs, ValidationError{CodeUnresolvedCitation, fmt.Sprintf("%s.citations[%d]", field, j), "citation does not match any recorded query execution"})
				}
			}
		}
		for j, ref := range spec.SectionIDs {
			if !existingSections[ref] && !addedSections[ref] {
				errs = append(errs, ValidationError{CodeNotFound, fmt.Sprintf("%s.section_ids[%d]", field, j), fmt.Sprintf("section %s not found", ref)})
			}
		}
	}

	for i, patch := range cs.InsightsToModify {
		if patch.InsightID != "" && !existingInsights[patch.InsightID] {
			errs = append(errs, ValidationError{CodeNotFound, fmt.Sprintf("insights_to_modify[%d].insight_id", i), fmt.Sprintf("insight %s not found", patch.InsightID)})
		}
	}
	for i, id := range cs.InsightsToRemove {
		if !existingInsights[id] {
			errs = append(errs, ValidationError{CodeNotFound, fmt.Sprintf("insights_to_remove[%d]", i), fmt.Sprintf("insight %s not found", id)})
		}
	}

	for i, spec := range cs.SectionsToAdd {
		field := fmt.Sprintf("sections_to_add[%d]", i)
		if existingSections[spec.SectionID] {
			errs = append(errs, ValidationError{CodeDuplicateID, field + ".section_id", fmt.Sprintf("section %s already exists", spec.SectionID)})
		}
		for j, ref := range spec.InsightIDs {
			if removedInsights[ref] {
				errs = append(errs, ValidationError{CodeConflict, fmt.Sprintf("%s.insight_ids[%d]", field, j), fmt.Sprintf("insight %s is removed in this batch and cannot be referenced", ref)})
			} else if !resolvable(ref) {
				errs = append(errs, ValidationError{CodeNotFound, fmt.Sprintf("%s.insight_ids[%d]", field, j), fmt.Sprintf("insight %s not found", ref)})
			}
		}
	}

	for i, patch := range cs.SectionsToModify {
		field := fmt.Sprintf("sections_to_modify[%d]", i)
		if patch.SectionID != "" && !existingSections[patch.SectionID] {
			errs = append(errs, ValidationError{CodeNotFound, field + ".section_id", fmt.Sprintf("section %s not found", patch.SectionID)})
		}
		for j, ref := range patch.InsightIDsToAdd {
			if removedInsights[ref] {
				errs = append(errs, ValidationError{CodeConflict, fmt.Sprintf("%s.insight_ids_to_add[%d]", field, j), fmt.Sprintf("insight %s is removed in this batch and cannot be referenced", ref)})
			} else if !resolvable(ref) {
				errs = append(errs, ValidationError{CodeNotFound, fmt.Sprintf("%s.insight_ids_to_add[%d]", field, j), fmt.Sprintf("insight %s not found", ref)})
			}
		}
		for j, ref := range patch.InsightIDs {
			if removedInsights[ref] {
				errs = append(errs, ValidationError{CodeConflict, fmt.Sprintf("%s.insight_ids[%d]", field, j), fmt.Sprintf("insight %s is removed in this batch and cannot be referenced", ref)})
			} else if !resolvable(ref) {
				errs = append(errs, ValidationError{CodeNotFound, fmt.Sprintf("%s.insight_ids[%d]", field, j), fmt.Sprintf("insight %s not found", ref)})
			}
		}
	}

	for i, id := range cs.SectionsToRemove {
		if !existingSections[id] {
			errs = append(errs, ValidationError{CodeNotFound, fmt.Sprintf("sections_to_remove[%d]", i), fmt.Sprintf("section %s not found", id)})
		}
	}

	return errs
}
