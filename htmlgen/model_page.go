package htmlgen

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/modelcat/modelcat/models"
)

// modelPageTemplate renders one model's detail page. Upstream descriptions
// are already HTML and are embedded as-is, matching what the upstream site
// serves.
var modelPageTemplate = template.Must(template.New("model").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
a { color: #3498db; text-decoration: none; }
a:hover { color: #2779af; text-decoration: underline; }
.container { background-color: white; border-radius: 8px; padding: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
.header { text-align: center; margin-bottom: 30px; }
.section { margin-bottom: 24px; }
.label { font-weight: 600; margin-top: 10px; }
.tag { display: inline-block; background: #ecf0f1; border-radius: 4px; padding: 2px 8px; margin: 2px; font-size: 0.85rem; }
.gallery { display: grid; grid-template-columns: repeat(auto-fill, minmax(180px, 1fr)); gap: 10px; }
.gallery img, .gallery video { width: 100%; border-radius: 4px; }
.stats { color: #666; font-size: 0.9rem; }
.hash { font-family: 'Courier New', monospace; font-size: 0.85rem; background: #fff; color: #c70066; padding: 2px 6px; border: 1px solid #e1e1e1; border-radius: 4px; word-break: break-all; }
.notes { background: #fffbe6; border: 1px solid #f0e6b8; border-radius: 4px; padding: 10px 16px; }
.footer { text-align: center; padding: 20px; font-size: 0.8rem; color: #666; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>{{.Title}}</h1>
    {{if .VersionName}}<div class="stats">Version: {{.VersionName}}{{if .BaseModel}} · {{.BaseModel}}{{end}}</div>{{end}}
    {{if .Creator}}<div class="stats">by {{.Creator}}</div>{{end}}
    {{if .ModelID}}<div class="stats"><a href="https://civitai.com/models/{{.ModelID}}">View on Civitai</a></div>{{end}}
  </div>
  {{if .Notes}}<div class="section notes">{{.Notes}}</div>{{end}}
  {{if .Previews}}
  <div class="section">
    <h2>Preview Images</h2>
    <div class="gallery">
      {{range .Previews}}{{if .Video}}<video src="{{.Name}}" controls></video>{{else}}<img src="{{.Name}}" alt="Preview">{{end}}{{end}}
    </div>
  </div>
  {{end}}
  {{if .TrainedWords}}
  <div class="section">
    <div class="label">Trained Words:</div>
    <div>{{range .TrainedWords}}<span class="tag">{{.}}</span>{{end}}</div>
  </div>
  {{end}}
  {{if .Tags}}
  <div class="section">
    <div class="label">Tags:</div>
    <div>{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</div>
  </div>
  {{end}}
  {{if .Description}}
  <div class="section">
    <h2>Description</h2>
    <div>{{.Description}}</div>
  </div>
  {{end}}
  <div class="section">
    <h2>File</h2>
    <div class="label">Filename:</div><div>{{.Filename}}</div>
    <div class="label">SHA256:</div><div class="hash">{{.Hash}}</div>
    {{if .Downloads}}<div class="label">Downloads:</div><div class="stats">{{.Downloads}}</div>{{end}}
  </div>
  <div class="footer">Generated by modelcat {{.Version}} on {{.Generated}}</div>
</div>
</body>
</html>
`))

type previewView struct {
	Name  string
	Video bool
}

type modelPageData struct {
	Title        string
	VersionName  string
	BaseModel    string
	Creator      string
	ModelID      int
	Notes        template.HTML
	Previews     []previewView
	TrainedWords []string
	Tags         []string
	Description  template.HTML
	Filename     string
	Hash         string
	Downloads    int
	Version      string
	Generated    string
}

// ModelPage renders the detail page for a finalized record into its record
// directory as <base>.html.
func (g *Generator) ModelPage(record *models.ModelRecord) error {
	if record == nil {
		return fmt.Errorf("cannot render page for nil record")
	}

	notes, err := g.renderNotes(record.BaseName)
	if err != nil {
		return err
	}

	data := modelPageData{
		Title:     record.BaseName,
		Notes:     template.HTML(notes),
		Filename:  record.Hash.Filename,
		Hash:      record.Hash.HashValue,
		Version:   g.version,
		Generated: record.ProcessedAt.Format("2006-01-02 15:04:05"),
	}
	if record.Model != nil {
		data.Title = recordOrDefault(record.Model.Name, record.BaseName)
		data.Creator = record.Model.Creator.Username
		data.ModelID = record.Model.ID
		data.Tags = record.Model.Tags
		data.Description = template.HTML(record.Model.Description)
	}
	if record.Version != nil {
		data.VersionName = record.Version.Name
		data.BaseModel = record.Version.BaseModel
		data.TrainedWords = record.Version.TrainedWords
		data.Downloads = record.Version.Stats.DownloadCount
		if data.ModelID == 0 {
			data.ModelID = record.Version.ModelID
		}
	}
	for _, p := range record.Previews {
		data.Previews = append(data.Previews, previewView{
			Name:  p,
			Video: filepath.Ext(p) == ".mp4",
		})
	}

	var buf bytes.Buffer
	if err := modelPageTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("rendering page for %s: %w", record.BaseName, err)
	}

	path := filepath.Join(g.store.RecordDir(record.BaseName), record.BaseName+".html")
	return writePage(path, buf.Bytes())
}
