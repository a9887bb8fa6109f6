package render

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/briefkit/brief/internal/outline"
	"github.com/briefkit/brief/internal/service"
)

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; }
h1 { border-bottom: 2px solid #ddd; padding-bottom: .3rem; }
.meta { color: #666; font-size: .9rem; }
.importance { font-weight: bold; color: #333; }
.citations { color: #888; font-size: .85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Version {{.Version}} &middot; updated {{.UpdatedAt}}{{if .Tags}} &middot; tags: {{.Tags}}{{end}}</p>
{{range .Sections}}<h2>{{.Title}}</h2>
{{if .Content}}<p>{{.Content}}</p>
{{end}}{{if .Insights}}<ul>
{{range .Insights}}<li><span class="importance">[{{.Importance}}]</span> {{.Summary}}{{if .Citations}} <span class="citations">({{.Citations}})</span>{{end}}</li>
{{end}}</ul>
{{end}}{{end}}</body>
</html>
`))

type htmlInsight struct {
	Importance int
	Summary    string
	Citations  string
}

type htmlSection struct {
	Title    string
	Content  string
	Insights []htmlInsight
}

type htmlReport struct {
	Title     string
	Version   int
	UpdatedAt string
	Tags      string
	Sections  []htmlSection
}

// HTML renders the outline as a standalone HTML document.
func HTML(o *outline.Outline) (string, error) {
	if problems := service.StructuralProblems(o); len(problems) > 0 {
		return "", fmt.Errorf("outline is not structurally consistent: %s", strings.Join(problems, "; "))
	}

	byID := make(map[string]outline.Insight, len(o.Insights))
	for _, in := range o.Insights {
		byID[in.InsightID] = in
	}

	doc := htmlReport{
		Title:     o.Title,
		Version:   o.OutlineVersion,
		UpdatedAt: o.UpdatedAt,
		Tags:      strings.Join(o.Tags(), ", "),
	}
	for _, sec := range o.SortedSections() {
		hs := htmlSection{Title: sec.Title, Content: sec.Content}
		insights := sectionInsights(sec, byID)
		sort.SliceStable(insights, func(i, j int) bool { return insights[i].Importance > insights[j].Importance })
		for _, in := range insights {
			if in.Status == outline.InsightKilled {
				continue
			}
			hs.Insights = append(hs.Insights, htmlInsight{
				Importance: in.Importance,
				Summary:    in.Summary,
				Citations:  citationRefs(in),
			})
		}
		doc.Sections = append(doc.Sections, hs)
	}

	var b strings.Builder
	if err := htmlTmpl.Execute(&b, doc); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return b.String(), nil
}
