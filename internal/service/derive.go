package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/briefkit/brief/internal/outline"
)

// Fork creates an independent copy of a report's current outline under a
// new id. The copy shares no mutable state with the source.
func (s *Service) Fork(ctx context.Context, srcSel, newTitle, actor string) (outline.Outline, error) {
	if newTitle == "" {
		return outline.Outline{}, fmt.Errorf("title is required")
	}
	srcID, err := s.Resolve(srcSel)
	if err != nil {
		return outline.Outline{}, err
	}
	src, err := s.store(srcID).LoadOutline()
	if err != nil {
		return outline.Outline{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	forked := src.Clone()
	forked.ReportID = uuid.NewString()
	forked.Title = newTitle
	forked.CreatedAt = now
	forked.UpdatedAt = now
	forked.OutlineVersion = 1
	if forked.Metadata == nil {
		forked.Metadata = map[string]any{}
	}
	forked.Metadata[outline.MetaForkedFrom] = srcID
	forked.Metadata[outline.MetaStatus] = outline.StatusActive

	return s.persistNew(ctx, forked, outline.ActionFork, actorOr(actor), map[string]any{
		"source_report_id": srcID,
	})
}

// Synthesize creates a new report combining the insights of several source
// reports, one section per source referencing that source's insights.
func (s *Service) Synthesize(ctx context.Context, srcSels []string, newTitle, actor string) (outline.Outline, error) {
	if newTitle == "" {
		return outline.Outline{}, fmt.Errorf("title is required")
	}
	if len(srcSels) < 2 {
		return outline.Outline{}, fmt.Errorf("synthesize needs at least two source reports")
	}

	combined := outline.New(newTitle, time.Now())
	var sourceIDs []string
	seen := map[string]bool{}
	for i, sel := range srcSels {
		srcID, err := s.Resolve(sel)
		if err != nil {
			return outline.Outline{}, err
		}
		src, err := s.store(srcID).LoadOutline()
		if err != nil {
			return outline.Outline{}, err
		}
		sourceIDs = append(sourceIDs, srcID)

		var sectionRefs []string
		for _, in := range src.Insights {
			copied := in
			copied.Citations = append([]outline.DatasetSource(nil), in.Citations...)
			if seen[copied.InsightID] {
				copied.InsightID = uuid.NewString()
			}
			seen[copied.InsightID] = true
			combined.Insights = append(combined.Insights, copied)
			sectionRefs = append(sectionRefs, copied.InsightID)
		}
		sec, err := outline.NewSection("", src.Title, i)
		if err != nil {
			return outline.Outline{}, err
		}
		sec.InsightIDs = sectionRefs
		combined.Sections = append(combined.Sections, sec)
	}
	combined.Metadata[outline.MetaSynthesizedFrom] = sourceIDs

	return s.persistNew(ctx, combined, outline.ActionSynthesize, actorOr(actor), map[string]any{
		"source_report_ids": sourceIDs,
	})
}

// persistNew saves, audits, and indexes a freshly-built report.
func (s *Service) persistNew(ctx context.Context, o outline.Outline, actionType, actor string, payload map[string]any) (outline.Outline, error) {
	st := s.store(o.ReportID)
	lock, err := st.Lock(ctx)
	if err != nil {
		return outline.Outline{}, err
	}
	defer func() { _ = lock.Release() }()

	if _, err := st.SaveOutline(&o, actionType); err != nil {
		return outline.Outline{}, err
	}
	ev := outline.NewAuditEvent(o.ReportID, actor, actionType, payload)
	if err := st.AppendAuditEvent(ev); err != nil {
		return outline.Outline{}, err
	}
	if err := s.ix.Add(outline.EntryFor(&o, s.entryPath(o.ReportID))); err != nil {
		return outline.Outline{}, err
	}
	log.Info().Str("report_id", o.ReportID).Str("action", actionType).Msg("report created from source")
	return o, nil
}
