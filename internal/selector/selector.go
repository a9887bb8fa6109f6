// Package selector resolves a free-form report selector — an exact id, a
// tag:value expression, or a full or partial title — to exactly one report.
package selector

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/briefkit/brief/internal/index"
	"github.com/briefkit/brief/internal/outline"
)

// TagPrefix marks a selector that matches by tag.
const TagPrefix = "tag:"

// Kind is the resolution failure sub-kind.
type Kind string

const (
	// KindNotFound means no report matched the selector.
	KindNotFound Kind = "not_found"
	// KindAmbiguous means more than one report matched.
	KindAmbiguous Kind = "ambiguous"
)

// Candidate is one report a selector could have meant.
type Candidate struct {
	ReportID string
	Title    string
}

// ResolutionError carries the original selector and, when ambiguous, the
// candidates, so callers can render an actionable message without
// re-querying.
type ResolutionError struct {
	Selector   string
	Kind       Kind
	Candidates []Candidate
}

func (e *ResolutionError) Error() string {
	if e.Kind == KindAmbiguous {
		names := make([]string, len(e.Candidates))
		for i, c := range e.Candidates {
			names[i] = fmt.Sprintf("%s (%s)", c.Title, c.ReportID)
		}
		return fmt.Sprintf("selector %q is ambiguous: matches %s", e.Selector, strings.Join(names, ", "))
	}
	return fmt.Sprintf("no report matches selector %q", e.Selector)
}

func candidates(entries []outline.IndexEntry) []Candidate {
	out := make([]Candidate, len(entries))
	for i, e := range entries {
		out[i] = Candidate{ReportID: e.ReportID, Title: e.CurrentTitle}
	}
	return out
}

// Resolve turns a selector into exactly one report id. Resolution is tried
// in order, first success wins: literal report id present in the index,
// then tag:value, then title (case-insensitive exact, else unambiguous
// substring).
func Resolve(ix *index.Index, sel string) (string, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return "", &ResolutionError{Selector: sel, Kind: KindNotFound}
	}

	// A UUID-shaped selector that is not a known report id falls through:
	// it may still be a title or tag.
	if _, err := uuid.Parse(sel); err == nil {
		if _, ok := ix.Get(sel); ok {
			return sel, nil
		}
	}

	if strings.HasPrefix(sel, TagPrefix) {
		tag := strings.TrimPrefix(sel, TagPrefix)
		matches := ix.ByTag(tag)
		switch len(matches) {
		case 0:
			return "", &ResolutionError{Selector: sel, Kind: KindNotFound}
		case 1:
			return matches[0].ReportID, nil
		default:
			return "", &ResolutionError{Selector: sel, Kind: KindAmbiguous, Candidates: candidates(matches)}
		}
	}

	matches := ix.ResolveTitle(sel)
	switch len(matches) {
	case 0:
		return "", &ResolutionError{Selector: sel, Kind: KindNotFound}
	case 1:
		return matches[0].ReportID, nil
	default:
		return "", &ResolutionError{Selector: sel, Kind: KindAmbiguous, Candidates: candidates(matches)}
	}
}
