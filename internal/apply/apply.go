// Package apply deterministically transforms an outline with a validated
// change-set. It is pure: nothing here touches storage, locks, or the audit
// log, which keeps the transform trivially testable.
package apply

import (
	"time"

	"github.com/briefkit/brief/internal/changes"
	"github.com/briefkit/brief/internal/outline"
)

// Summary lists the ids touched by one apply, for audit payloads and
// response summaries.
type Summary struct {
	InsightsAdded    []string `json:"insights_added,omitempty"`
	InsightsModified []string `json:"insights_modified,omitempty"`
	InsightsRemoved  []string `json:"insights_removed,omitempty"`
	SectionsAdded    []string `json:"sections_added,omitempty"`
	SectionsModified []string `json:"sections_modified,omitempty"`
	SectionsRemoved  []string `json:"sections_removed,omitempty"`
	TitleChanged     bool     `json:"title_changed,omitempty"`
	StatusChanged    bool     `json:"status_changed,omitempty"`
}

// Apply produces the next outline version from a validated change-set.
//
// The fixed operation order makes interdependent batches predictable: a
// batch may add an insight and reference it from a newly-added section in
// either direction (ids are assigned during validation; insight-to-section
// links are applied only after every section in the batch exists), and
// removing an insight never leaves a dangling section reference even when
// the removal and a section edit arrive together.
func Apply(o *outline.Outline, cs *changes.ChangeSet, now time.Time) (outline.Outline, Summary) {
	next := o.Clone()
	var sum Summary

	// 1. Title.
	if cs.TitleChange != nil {
		next.Title = *cs.TitleChange
		sum.TitleChanged = true
	}

	// 2. Metadata merge, shallow key overwrite; status lives under the
	// status metadata key.
	if len(cs.MetadataUpdates) > 0 || cs.StatusChange != nil {
		if next.Metadata == nil {
			next.Metadata = map[string]any{}
		}
		for k, v := range cs.MetadataUpdates {
			next.Metadata[k] = v
		}
		if cs.StatusChange != nil {
			next.Metadata[outline.MetaStatus] = *cs.StatusChange
			sum.StatusChanged = true
		}
	}

	// 3. Insight removals, stripped from every section.
	if len(cs.InsightsToRemove) > 0 {
		removed := make(map[string]bool, len(cs.InsightsToRemove))
		for _, id := range cs.InsightsToRemove {
			removed[id] = true
		}
		kept := next.Insights[:0]
		for _, in := range next.Insights {
			if removed[in.InsightID] {
				sum.InsightsRemoved = append(sum.InsightsRemoved, in.InsightID)
				continue
			}
			kept = append(kept, in)
		}
		next.Insights = kept
		for i := range next.Sections {
			refs := next.Sections[i].InsightIDs[:0]
			for _, ref := range next.Sections[i].InsightIDs {
				if !removed[ref] {
					refs = append(refs, ref)
				}
			}
			next.Sections[i].InsightIDs = refs
		}
	}

	// 4. Insight modifications: only fields present in the patch change.
	for _, patch := range cs.InsightsToModify {
		in, err := next.Insight(patch.InsightID)
		if err != nil {
			continue
		}
		if patch.Summary != nil {
			in.Summary = *patch.Summary
		}
		if patch.Importance != nil {
			in.Importance = *patch.Importance
		}
		if patch.Status != nil {
			in.Status = *patch.Status
		}
		if patch.Citations != nil {
			in.Citations = append([]outline.DatasetSource(nil), patch.Citations...)
		}
		if len(patch.Metadata) > 0 {
			if in.Metadata == nil {
				in.Metadata = map[string]any{}
			}
			for k, v := range patch.Metadata {
				in.Metadata[k] = v
			}
		}
		sum.InsightsModified = append(sum.InsightsModified, patch.InsightID)
	}

	// 5. Insight additions. Target-section links are deferred until after
	// section additions so an insight may target a section added in the
	// same batch.
	type pendingLink struct {
		insightID string
		sectionID string
	}
	var links []pendingLink
	for _, spec := range cs.InsightsToAdd {
		importance := 0
		if spec.Importance != nil {
			importance = *spec.Importance
		}
		status := spec.Status
		if status == "" {
			status = outline.InsightActive
		}
		next.Insights = append(next.Insights, outline.Insight{
			InsightID:  spec.InsightID,
			Summary:    spec.Summary,
			Importance: importance,
			Status:     status,
			Citations:  append([]outline.DatasetSource(nil), spec.Citations...),
			Metadata:   spec.Metadata,
		})
		sum.InsightsAdded = append(sum.InsightsAdded, spec.InsightID)
		for _, target := range spec.SectionIDs {
			links = append(links, pendingLink{insightID: spec.InsightID, sectionID: target})
		}
	}

	// 6. Section removals. Insights owned only by a removed section are
	// kept: insight removal is always explicit.
	if len(cs.SectionsToRemove) > 0 {
		removed := make(map[string]bool, len(cs.SectionsToRemove))
		for _, id := range cs.SectionsToRemove {
			removed[id] = true
		}
		kept := next.Sections[:0]
		for _, sec := range next.Sections {
			if removed[sec.SectionID] {
				sum.SectionsRemoved = append(sum.SectionsRemoved, sec.SectionID)
				continue
			}
			kept = append(kept, sec)
		}
		next.Sections = kept
	}

	// 7. Section modifications with incremental reference edits.
	for _, patch := range cs.SectionsToModify {
		sec, err := next.Section(patch.SectionID)
		if err != nil {
			continue
		}
		if patch.Title != nil {
			sec.Title = *patch.Title
		}
		if patch.Order != nil {
			sec.Order = *patch.Order
		}
		if patch.Content != nil {
			sec.Content = *patch.Content
		}
		if patch.ContentFormat != nil {
			sec.ContentFormat = *patch.ContentFormat
		}
		if patch.Notes != nil {
			sec.Notes = *patch.Notes
		}
		if patch.InsightIDs != nil {
			sec.InsightIDs = append([]string(nil), patch.InsightIDs...)
		}
		for _, ref := range patch.InsightIDsToAdd {
			if !sec.HasInsight(ref) {
				sec.InsightIDs = append(sec.InsightIDs, ref)
			}
		}
		if len(patch.InsightIDsToRemove) > 0 {
			drop := make(map[string]bool, len(patch.InsightIDsToRemove))
			for _, ref := range patch.InsightIDsToRemove {
				drop[ref] = true
			}
			kept := sec.InsightIDs[:0]
			for _, ref := range sec.InsightIDs {
				if !drop[ref] {
					kept = append(kept, ref)
				}
			}
			sec.InsightIDs = kept
		}
		sum.SectionsModified = append(sum.SectionsModified, patch.SectionID)
	}

	// 8. Section additions.
	for _, spec := range cs.SectionsToAdd {
		order := 0
		if spec.Order != nil {
			order = *spec.Order
		}
		format := spec.ContentFormat
		if format == "" {
			format = outline.FormatMarkdown
		}
		next.Sections = append(next.Sections, outline.Section{
			SectionID:     spec.SectionID,
			Title:         spec.Title,
			Order:         order,
			InsightIDs:    append([]string(nil), spec.InsightIDs...),
			Content:       spec.Content,
			ContentFormat: format,
			Notes:         spec.Notes,
		})
		sum.SectionsAdded = append(sum.SectionsAdded, spec.SectionID)
	}

	// Flush the deferred links now that every target section exists.
	for _, l := range links {
		if sec, err := next.Section(l.sectionID); err == nil && !sec.HasInsight(l.insightID) {
			sec.InsightIDs = append(sec.InsightIDs, l.insightID)
		}
	}

	// 9. Version and timestamp.
	next.OutlineVersion = o.OutlineVersion + 1
	next.UpdatedAt = now.UTC().Format(time.RFC3339)

	return next, sum
}
