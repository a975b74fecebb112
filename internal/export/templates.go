package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower":      strings.ToLower,
		"formatDate": formatDate,
		"statusLabel": func(s string) string {
			if s == "additional_request" {
				return "Additional Request"
			}
			return "In Scope"
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// formatDate renders both time.Time values and nilable pointers so the
// template does not need separate branches for optional dates.
func formatDate(t any, layout string) string {
	switch v := t.(type) {
	case time.Time:
		return v.Format(layout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(layout)
	default:
		return ""
	}
}

// TemplateData holds data for scope report rendering
type TemplateData struct {
	Title           string
	ClientName      string
	State           string
	RevisionCap     int
	RevisionUsed    int
	AllowedTypes    []string
	CreatedAt       time.Time
	ApprovedAt      *time.Time
	Versions        []TemplateVersion
	Rounds          []TemplateRound
	InScopeCount    int
	AdditionalCount int
}

// TemplateVersion holds one uploaded cut for the report
type TemplateVersion struct {
	Number     int
	UploadedAt time.Time
}

// TemplateRound holds one revision round and its notes
type TemplateRound struct {
	Number      int
	Status      string
	OpenedAt    time.Time
	SubmittedAt *time.Time
	Notes       []TemplateNote
}

// TemplateNote holds one classified note for the report
type TemplateNote struct {
	Body           string
	RequestType    string
	Timecode       string
	Original       string
	Effective      string
	Overridden     bool
	OverrideReason string
}

// RenderReportHTML renders the scope report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}} - Scope Report</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .note { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .additional { border-left-color: #cc3300; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.ClientName}} | {{.RevisionUsed}}/{{.RevisionCap}} revisions used | {{.State}}</div>
  {{range .Rounds}}
  <h2>Round {{.Number}}</h2>
  {{range .Notes}}<div class="note{{if eq .Effective "additional_request"}} additional{{end}}">{{.Body}} ({{statusLabel .Effective}})</div>{{end}}
  {{end}}
</body>
</html>`
