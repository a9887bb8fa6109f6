// Package index maintains the global report index: an in-memory map backed
// by an append-only JSON-lines log. In-memory state is authoritative for a
// process's lifetime; the log exists so the next process can replay it
// (last line per report id wins). The per-report storage is the source of
// truth — the index is a projection and can always be rebuilt by scanning
// every report directory.
package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/briefkit/brief/internal/outline"
	"github.com/briefkit/brief/internal/storage"
)

// record is one index log line. Deleted marks a tombstone.
type record struct {
	outline.IndexEntry
	Deleted bool `json:"deleted,omitempty"`
}

// Index is the materialized report index.
type Index struct {
	path    string
	entries map[string]outline.IndexEntry
}

// Load reads the index log. A missing file is the normal empty-index case;
// a file that fails to parse is a hard error — callers wanting self-healing
// must explicitly rebuild.
func Load(path string) (*Index, error) {
	ix := &Index{path: path, entries: map[string]outline.IndexEntry{}}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ix, nil
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("index line %d corrupted: %w", lineNo, err)
		}
		if rec.Deleted {
			delete(ix.entries, rec.ReportID)
			continue
		}
		ix.entries[rec.ReportID] = rec.IndexEntry
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return ix, nil
}

func (ix *Index) appendRecord(rec record) error {
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal index record: %w", err)
	}
	f, err := os.OpenFile(ix.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append index record: %w", err)
	}
	return nil
}

// Add inserts or replaces an entry, appending its current form to the log.
func (ix *Index) Add(e outline.IndexEntry) error {
	if err := ix.appendRecord(record{IndexEntry: e}); err != nil {
		return err
	}
	ix.entries[e.ReportID] = e
	return nil
}

// Update is Add: the log keeps the full history, the map keeps the latest.
func (ix *Index) Update(e outline.IndexEntry) error { return ix.Add(e) }

// Remove deletes an entry, appending a tombstone to the log.
func (ix *Index) Remove(reportID string) error {
	e := ix.entries[reportID]
	e.ReportID = reportID
	if err := ix.appendRecord(record{IndexEntry: e, Deleted: true}); err != nil {
		return err
	}
	delete(ix.entries, reportID)
	return nil
}

// Get returns the entry for a report id.
func (ix *Index) Get(reportID string) (outline.IndexEntry, bool) {
	e, ok := ix.entries[reportID]
	return e, ok
}

// Len returns the number of indexed reports.
func (ix *Index) Len() int { return len(ix.entries) }

// ResolveTitle matches a title string against the index. A case-insensitive
// exact match wins; otherwise entries whose titles contain the text are
// returned. One element means an unambiguous match, several mean the caller
// must treat the selector as ambiguous, none means not found.
func (ix *Index) ResolveTitle(text string) []outline.IndexEntry {
	needle := strings.ToLower(text)
	var exact, partial []outline.IndexEntry
	for _, e := range ix.entries {
		title := strings.ToLower(e.CurrentTitle)
		if title == needle {
			exact = append(exact, e)
		} else if strings.Contains(title, needle) {
			partial = append(partial, e)
		}
	}
	if len(exact) > 0 {
		sortEntries(exact, "updated_at", false)
		return exact
	}
	sortEntries(partial, "updated_at", false)
	return partial
}

// ByTag returns all entries carrying the tag.
func (ix *Index) ByTag(tag string) []outline.IndexEntry {
	var out []outline.IndexEntry
	for _, e := range ix.entries {
		if e.HasTag(tag) {
			out = append(out, e)
		}
	}
	sortEntries(out, "updated_at", false)
	return out
}

// ListOptions filters and orders a listing.
type ListOptions struct {
	Status string
	// Tags filters with AND semantics: an entry matches only if it carries
	// every requested tag.
	Tags    []string
	SortBy  string // updated_at (default), created_at, title
	Reverse bool   // flips the default direction
}

// List returns entries matching every supplied filter. The default order
// is updated_at descending.
func (ix *Index) List(opts ListOptions) []outline.IndexEntry {
	var out []outline.IndexEntry
	for _, e := range ix.entries {
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		matched := true
		for _, tag := range opts.Tags {
			if !e.HasTag(tag) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		out = append(out, e)
	}
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "updated_at"
	}
	sortEntries(out, sortBy, opts.Reverse)
	return out
}

func sortEntries(entries []outline.IndexEntry, sortBy string, reverse bool) {
	less := func(a, b outline.IndexEntry) bool {
		switch sortBy {
		case "created_at":
			return a.CreatedAt > b.CreatedAt
		case "title":
			return strings.ToLower(a.CurrentTitle) < strings.ToLower(b.CurrentTitle)
		default:
			return a.UpdatedAt > b.UpdatedAt
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if reverse {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

// ValidateConsistency checks every entry's report directory on disk and
// returns human-readable discrepancies. It never repairs anything.
func (ix *Index) ValidateConsistency(reportsDir string) []string {
	var problems []string
	ids := make([]string, 0, len(ix.entries))
	for id := range ix.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := ix.entries[id]
		dir := filepath.Join(reportsDir, id)
		info, err := os.Stat(dir)
		if err != nil {
			problems = append(problems, fmt.Sprintf("report %s (%q): directory %s missing", id, e.CurrentTitle, dir))
			continue
		}
		if !info.IsDir() {
			problems = append(problems, fmt.Sprintf("report %s (%q): %s is not a directory", id, e.CurrentTitle, dir))
			continue
		}
		st := storage.New(dir, 0)
		o, err := st.LoadOutline()
		if err != nil {
			problems = append(problems, fmt.Sprintf("report %s (%q): outline unreadable: %v", id, e.CurrentTitle, err))
			continue
		}
		if o.Title != e.CurrentTitle {
			problems = append(problems, fmt.Sprintf("report %s: index title %q does not match outline title %q", id, e.CurrentTitle, o.Title))
		}
	}
	return problems
}

// RebuildFromFilesystem discards in-memory state and reconstructs the index
// by scanning every report directory, then rewrites the log compacted. This
// is the recovery path when the index file itself is suspect. Broken report
// directories are skipped and returned as warnings, never a crash.
func (ix *Index) RebuildFromFilesystem(reportsDir string) ([]string, error) {
	var warnings []string
	entries := map[string]outline.IndexEntry{}

	dirEntries, err := os.ReadDir(reportsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("scan reports dir: %w", err)
	}
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		dir := filepath.Join(reportsDir, de.Name())
		st := storage.New(dir, 0)
		o, err := st.LoadOutline()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %s: %v", de.Name(), err))
			continue
		}
		entries[o.ReportID] = outline.EntryFor(&o, filepath.Join("reports", o.ReportID))
	}

	tmp, err := os.CreateTemp(filepath.Dir(ix.path), "index.jsonl.tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp index: %w", err)
	}
	tmpPath := tmp.Name()
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	w := bufio.NewWriter(tmp)
	for _, id := range ids {
		data, err := json.Marshal(record{IndexEntry: entries[id]})
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return nil, fmt.Errorf("marshal index record: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return nil, fmt.Errorf("write index record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("flush index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmpPath, ix.path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("replace index: %w", err)
	}

	ix.entries = entries
	for _, warning := range warnings {
		log.Warn().Msg("index rebuild: " + warning)
	}
	return warnings, nil
}
