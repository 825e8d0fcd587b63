package htmlgen

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/modelcat/modelcat/models"
)

var overviewTemplate = template.Must(template.New("overview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Model Catalog</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 1100px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
a { color: #3498db; text-decoration: none; }
a:hover { text-decoration: underline; }
h1 { text-align: center; }
.type-section { margin-bottom: 32px; }
.models-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(240px, 1fr)); gap: 12px; }
.model-card { background: white; border-radius: 8px; padding: 14px; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
.model-card h3 { margin: 0 0 4px; font-size: 1rem; }
.version-name { color: #888; }
.downloads { color: #666; font-size: 0.85rem; margin-top: 4px; }
.tag { display: inline-block; background: #ecf0f1; border-radius: 4px; padding: 1px 6px; margin: 1px; font-size: 0.75rem; }
.footer { text-align: center; padding: 20px; font-size: 0.8rem; color: #666; }
</style>
</head>
<body>
<h1>Model Catalog</h1>
<div class="stats" style="text-align:center">{{.Total}} models</div>
{{range .Sections}}
<div class="type-section" data-type="{{.TypeLower}}">
  <h2>{{.Type}} ({{len .Models}} models)</h2>
  <div class="models-grid">
    {{range .Models}}
    <div class="model-card" data-tags="{{.TagsAttr}}">
      <h3><a href="{{.Href}}">{{.Name}}</a></h3>
      {{if .VersionName}}<small class="version-name">{{.VersionName}}</small>{{end}}
      <div>by {{.Creator}}</div>
      <div class="downloads">Downloads: {{.Downloads}}</div>
      <div>{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</div>
    </div>
    {{end}}
  </div>
</div>
{{end}}
<div class="footer">Generated by modelcat {{.Version}} on {{.Generated}}</div>
</body>
</html>
`))

type overviewCard struct {
	Name        string
	Href        string
	VersionName string
	Creator     string
	Downloads   int
	Tags        []string
	TagsAttr    string
}

type overviewSection struct {
	Type      string
	TypeLower string
	Models    []overviewCard
}

type overviewData struct {
	Total     int
	Sections  []overviewSection
	Version   string
	Generated string
}

// Overview renders the global index.html from catalog entries, grouped by
// model type and sorted by download count within each group.
func (g *Generator) Overview(entries []models.CatalogEntry) error {
	byType := lo.GroupBy(entries, func(e models.CatalogEntry) string {
		if e.Type == "" {
			return "Unknown"
		}
		return e.Type
	})

	types := lo.Keys(byType)
	sort.Strings(types)

	data := overviewData{
		Total:     len(entries),
		Version:   g.version,
		Generated: time.Now().Format("2006-01-02 15:04:05"),
	}
	for _, t := range types {
		group := byType[t]
		sort.Slice(group, func(i, j int) bool {
			return group[i].DownloadCount > group[j].DownloadCount
		})
		section := overviewSection{Type: t, TypeLower: strings.ToLower(t)}
		for _, e := range group {
			var tags []string
			if e.Tags != "" {
				tags = strings.Split(e.Tags, ",")
			}
			section.Models = append(section.Models, overviewCard{
				Name:        recordOrDefault(e.Name, e.BaseName),
				Href:        e.BaseName + "/" + e.BaseName + ".html",
				VersionName: e.VersionName,
				Creator:     recordOrDefault(e.Creator, "Unknown"),
				Downloads:   e.DownloadCount,
				Tags:        tags,
				TagsAttr:    strings.ToLower(e.Tags),
			})
		}
		data.Sections = append(data.Sections, section)
	}

	var buf bytes.Buffer
	if err := overviewTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("rendering overview: %w", err)
	}
	return writePage(filepath.Join(g.store.BaseDir(), "index.html"), buf.Bytes())
}
