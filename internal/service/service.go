// Package service orchestrates report operations: it is the only component
// that sequences locking, loading, validating, applying, persisting, and
// indexing together, and the façade every external adapter (CLI, MCP)
// calls into.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/briefkit/brief/internal/changes"
	"github.com/briefkit/brief/internal/config"
	"github.com/briefkit/brief/internal/index"
	"github.com/briefkit/brief/internal/outline"
	"github.com/briefkit/brief/internal/selector"
	"github.com/briefkit/brief/internal/storage"
	"github.com/briefkit/brief/internal/templates"
)

// Service implements the report operations.
type Service struct {
	cfg      config.Config
	ix       *index.Index
	resolver changes.CitationResolver
}

// New builds a service over an explicitly-passed index so multiple
// independent instances (for example in tests) never cross-contaminate.
// The citation resolver may be nil, in which case citations are only
// checked for presence, not resolvability.
func New(cfg config.Config, ix *index.Index, resolver changes.CitationResolver) *Service {
	return &Service{cfg: cfg, ix: ix, resolver: resolver}
}

// Index exposes the underlying index for read-only listing.
func (s *Service) Index() *index.Index { return s.ix }

func (s *Service) store(reportID string) *storage.Store {
	return storage.New(filepath.Join(s.cfg.ReportsDir(), reportID), s.cfg.LockWait())
}

func (s *Service) entryPath(reportID string) string {
	return filepath.Join("reports", reportID)
}

// Resolve turns a selector into a report id.
func (s *Service) Resolve(sel string) (string, error) {
	return selector.Resolve(s.ix, sel)
}

func actorOr(actor string) string {
	if actor == "" {
		return outline.ActorCLI
	}
	return actor
}

// Create builds a fresh report, optionally seeded from a named template,
// persists it, indexes it, and records the create audit event.
func (s *Service) Create(ctx context.Context, title, templateName string, tags []string, actor string) (outline.Outline, error) {
	if title == "" {
		return outline.Outline{}, fmt.Errorf("title is required")
	}
	o := outline.New(title, time.Now())
	if templateName != "" {
		sections, err := templates.Sections(templateName)
		if err != nil {
			return outline.Outline{}, err
		}
		o.Sections = sections
		o.Metadata[outline.MetaTemplate] = templateName
	}
	if len(tags) > 0 {
		o.SetTags(tags)
	}

	st := s.store(o.ReportID)
	lock, err := st.Lock(ctx)
	if err != nil {
		return outline.Outline{}, err
	}
	defer func() { _ = lock.Release() }()

	if _, err := st.SaveOutline(&o, outline.ActionCreate); err != nil {
		return outline.Outline{}, err
	}
	ev := outline.NewAuditEvent(o.ReportID, actorOr(actor), outline.ActionCreate, map[string]any{
		"title":    title,
		"template": templateName,
	})
	if err := st.AppendAuditEvent(ev); err != nil {
		return outline.Outline{}, err
	}
	if err := s.ix.Add(outline.EntryFor(&o, s.entryPath(o.ReportID))); err != nil {
		return outline.Outline{}, err
	}
	log.Info().Str("report_id", o.ReportID).Str("title", title).Msg("report created")
	return o, nil
}

// GetOutline loads the current outline for a selector. Reads take no lock:
// the storage layer's atomic rename guarantees a reader never observes a
// torn write.
func (s *Service) GetOutline(sel string) (outline.Outline, error) {
	id, err := s.Resolve(sel)
	if err != nil {
		return outline.Outline{}, err
	}
	return s.store(id).LoadOutline()
}

// List returns index entries matching the filters.
func (s *Service) List(opts index.ListOptions) []outline.IndexEntry {
	return s.ix.List(opts)
}

// History returns a report's audit events in append order.
func (s *Service) History(sel string) ([]outline.AuditEvent, error) {
	id, err := s.Resolve(sel)
	if err != nil {
		return nil, err
	}
	return s.store(id).LoadAuditEvents()
}

// ValidateStructure runs the pre-render consistency check: every section
// reference must resolve to an insight present in the outline. Returns
// human-readable problems, empty when consistent.
func (s *Service) ValidateStructure(sel string) ([]string, error) {
	o, err := s.GetOutline(sel)
	if err != nil {
		return nil, err
	}
	return StructuralProblems(&o), nil
}

// StructuralProblems lists dangling section references in an outline.
func StructuralProblems(o *outline.Outline) []string {
	known := make(map[string]bool, len(o.Insights))
	for _, in := range o.Insights {
		known[in.InsightID] = true
	}
	var problems []string
	for _, sec := range o.Sections {
		for _, ref := range sec.InsightIDs {
			if !known[ref] {
				problems = append(problems, fmt.Sprintf("section %s (%q) references missing insight %s", sec.SectionID, sec.Title, ref))
			}
		}
	}
	return problems
}

// RebuildIndex reconstructs the index from the per-report directories.
func (s *Service) RebuildIndex() ([]string, error) {
	return s.ix.RebuildFromFilesystem(s.cfg.ReportsDir())
}

// CheckIndex reports index/filesystem discrepancies without repairing.
func (s *Service) CheckIndex() []string {
	return s.ix.ValidateConsistency(s.cfg.ReportsDir())
}

// PruneBackups applies the retention policy to every indexed report.
func (s *Service) PruneBackups(policy storage.RetentionPolicy, dryRun bool) (storage.PruneResult, error) {
	var total storage.PruneResult
	for _, e := range s.ix.List(index.ListOptions{}) {
		res, err := s.store(e.ReportID).PruneBackups(policy, dryRun)
		if err != nil {
			return total, fmt.Errorf("prune report %s: %w", e.ReportID, err)
		}
		total.Considered += res.Considered
		total.Kept += res.Kept
		total.Deleted += res.Deleted
		total.Skipped += res.Skipped
	}
	return total, nil
}
