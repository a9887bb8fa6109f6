// Package templates holds the fixed registry of report section skeletons.
package templates

import (
	"fmt"
	"sort"

	"github.com/briefkit/brief/internal/outline"
)

// Skeleton is one predefined section in a template.
type Skeleton struct {
	Title string
	Order int
}

var registry = map[string][]Skeleton{
	"default": {
		{Title: "Summary", Order: 0},
		{Title: "Findings", Order: 1},
	},
	"monthly_sales": {
		{Title: "Executive Summary", Order: 0},
		{Title: "Revenue", Order: 1},
		{Title: "Top Products", Order: 2},
		{Title: "Regional Breakdown", Order: 3},
		{Title: "Outlook", Order: 4},
	},
	"quarterly_review": {
		{Title: "Highlights", Order: 0},
		{Title: "Performance vs Plan", Order: 1},
		{Title: "Key Metrics", Order: 2},
		{Title: "Risks", Order: 3},
		{Title: "Next Quarter", Order: 4},
	},
	"deep_dive": {
		{Title: "Question", Order: 0},
		{Title: "Methodology", Order: 1},
		{Title: "Analysis", Order: 2},
		{Title: "Conclusions", Order: 3},
	},
	"analyst_v1": {
		{Title: "Context", Order: 0},
		{Title: "Data", Order: 1},
		{Title: "Insights", Order: 2},
		{Title: "Recommendations", Order: 3},
	},
}

// UnknownTemplateError reports a template name outside the fixed set.
type UnknownTemplateError struct {
	Name string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template %q (known: %v)", e.Name, Names())
}

// Names returns the sorted list of registered template names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Sections builds fresh sections for the named template. Each call generates
// new section ids so templates never share state across reports.
func Sections(name string) ([]outline.Section, error) {
	skeletons, ok := registry[name]
	if !ok {
		return nil, &UnknownTemplateError{Name: name}
	}
	out := make([]outline.Section, 0, len(skeletons))
	for _, sk := range skeletons {
		sec, err := outline.NewSection("", sk.Title, sk.Order)
		if err != nil {
			return nil, fmt.Errorf("build template section: %w", err)
		}
		out = append(out, sec)
	}
	return out, nil
}
