package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"portfolio/api/internal/resume"
)

//go:embed templates/*.html
var templateFS embed.FS

var resumeTemplate = template.Must(template.New("resume.html").Funcs(template.FuncMap{
	"join": strings.Join,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"dates": func(start, end string) string {
		switch {
		case start == "" && end == "":
			return ""
		case end == "":
			return start + " – Present"
		case start == "":
			return end
		}
		return start + " – " + end
	},
}).ParseFS(templateFS, "templates/resume.html"))

// TemplateData holds data for résumé template rendering
type TemplateData struct {
	Resume      resume.Resume
	SummaryHTML template.HTML
	Sections    []string
	Generated   time.Time
}

func RenderResumeHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
