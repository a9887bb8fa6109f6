// Package render produces human-readable documents from a validated
// outline. It refuses outlines with dangling section references; callers
// run the structural check through the service before rendering.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/briefkit/brief/internal/outline"
	"github.com/briefkit/brief/internal/service"
)

// Markdown renders the outline as a markdown document. Sections appear in
// display order; each section's insights are listed by importance
// descending with their citations.
func Markdown(o *outline.Outline) (string, error) {
	if problems := service.StructuralProblems(o); len(problems) > 0 {
		return "", fmt.Errorf("outline is not structurally consistent: %s", strings.Join(problems, "; "))
	}

	byID := make(map[string]outline.Insight, len(o.Insights))
	for _, in := range o.Insights {
		byID[in.InsightID] = in
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", o.Title)
	fmt.Fprintf(&b, "_Version %d · updated %s_\n", o.OutlineVersion, o.UpdatedAt)
	if tags := o.Tags(); len(tags) > 0 {
		fmt.Fprintf(&b, "_Tags: %s_\n", strings.Join(tags, ", "))
	}
	b.WriteString("\n")

	for _, sec := range o.SortedSections() {
		fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		if sec.Content != "" {
			b.WriteString(sec.Content)
			b.WriteString("\n\n")
		}
		for _, in := range sectionInsights(sec, byID) {
			if in.Status == outline.InsightKilled {
				continue
			}
			fmt.Fprintf(&b, "- **[%d]** %s", in.Importance, in.Summary)
			if cites := citationRefs(in); cites != "" {
				fmt.Fprintf(&b, " _(%s)_", cites)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func sectionInsights(sec outline.Section, byID map[string]outline.Insight) []outline.Insight {
	out := make([]outline.Insight, 0, len(sec.InsightIDs))
	for _, id := range sec.InsightIDs {
		out = append(out, byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

func citationRefs(in outline.Insight) string {
	var refs []string
	for _, c := range in.Citations {
		switch {
		case c.ExecutionID != "":
			refs = append(refs, "exec "+short(c.ExecutionID))
		case c.SQLHash != "":
			refs = append(refs, "sql "+short(c.SQLHash))
		}
	}
	return strings.Join(refs, ", ")
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
