package selector

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/briefkit/brief/internal/index"
	"github.com/briefkit/brief/internal/outline"
)

func buildIndex(t *testing.T, entries ...outline.IndexEntry) *index.Index {
	t.Helper()
	ix, err := index.Load(filepath.Join(t.TempDir(), "index.jsonl"))
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	for _, e := range entries {
		if err := ix.Add(e); err != nil {
			t.Fatalf("add entry: %v", err)
		}
	}
	return ix
}

func entry(id, title string, tags ...string) outline.IndexEntry {
	return outline.IndexEntry{
		ReportID:     id,
		CurrentTitle: title,
		Status:       outline.StatusActive,
		UpdatedAt:    "2026-06-01T00:00:00Z",
		Tags:         tags,
	}
}

func TestResolve_ByID(t *testing.T) {
	t.Parallel()

	id := uuid.NewString()
	ix := buildIndex(t, entry(id, "Sales"))

	got, err := Resolve(ix, id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != id {
		t.Fatalf("resolved %q, want %q", got, id)
	}

	_, err = Resolve(ix, uuid.NewString())
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Kind != KindNotFound {
		t.Fatalf("unknown id error = %v, want not_found", err)
	}
}

func TestResolve_UUIDShapedSelectorFallsThroughToTitle(t *testing.T) {
	t.Parallel()

	// A report whose title happens to be UUID-shaped stays reachable by
	// title when no report carries that id.
	weird := uuid.NewString()
	id := uuid.NewString()
	ix := buildIndex(t, entry(id, weird))

	got, err := Resolve(ix, weird)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != id {
		t.Fatalf("resolved %q, want title match %q", got, id)
	}
}

func TestResolve_TitleExactWinsOverSubstring(t *testing.T) {
	t.Parallel()

	// Two reports, "Sales" and "Sales Deep Dive": the selector "Sales" must
	// deterministically pick the exact-title match every time.
	exact := uuid.NewString()
	longer := uuid.NewString()
	ix := buildIndex(t,
		entry(exact, "Sales"),
		entry(longer, "Sales Deep Dive"),
	)

	for i := 0; i < 10; i++ {
		got, err := Resolve(ix, "sales")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if got != exact {
			t.Fatalf("resolved %q, want exact match %q", got, exact)
		}
	}

	got, err := Resolve(ix, "deep dive")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != longer {
		t.Fatalf("resolved %q, want %q", got, longer)
	}
}

func TestResolve_AmbiguousSubstringListsCandidates(t *testing.T) {
	t.Parallel()

	a := uuid.NewString()
	b := uuid.NewString()
	ix := buildIndex(t,
		entry(a, "Churn Q1"),
		entry(b, "Churn Q2"),
	)

	_, err := Resolve(ix, "churn")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error type = %T, want *ResolutionError", err)
	}
	if resErr.Kind != KindAmbiguous {
		t.Fatalf("kind = %q, want ambiguous", resErr.Kind)
	}
	if len(resErr.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(resErr.Candidates))
	}
}

func TestResolve_TagSelector(t *testing.T) {
	t.Parallel()

	a := uuid.NewString()
	b := uuid.NewString()
	c := uuid.NewString()
	ix := buildIndex(t,
		entry(a, "A", "q3"),
		entry(b, "B", "q3"),
		entry(c, "C", "final"),
	)

	got, err := Resolve(ix, "tag:final")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != c {
		t.Fatalf("resolved %q, want %q", got, c)
	}

	_, err = Resolve(ix, "tag:q3")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Kind != KindAmbiguous {
		t.Fatalf("shared tag error = %v, want ambiguous", err)
	}

	_, err = Resolve(ix, "tag:nope")
	if !errors.As(err, &resErr) || resErr.Kind != KindNotFound {
		t.Fatalf("unknown tag error = %v, want not_found", err)
	}
}

func TestResolve_EmptySelector(t *testing.T) {
	t.Parallel()

	ix := buildIndex(t)
	_, err := Resolve(ix, "   ")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Kind != KindNotFound {
		t.Fatalf("empty selector error = %v, want not_found", err)
	}
}
