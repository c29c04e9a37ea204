package export

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"portfolio/api/internal/render"
	"portfolio/api/internal/resume"
)

type Config struct {
	// ChromeURL is the DevTools websocket of a running browser. When empty a
	// local chromium is started per export.
	ChromeURL  string
	PandocPath string
}

type converter func(ctx context.Context, html, title string) (*Result, error)

// Service provides résumé export
type Service struct {
	renderer   *render.Renderer
	converters map[Format]converter
	now        func() time.Time
}

func NewService(cfg Config, renderer *render.Renderer) *Service {
	pandoc := cfg.PandocPath
	if pandoc == "" {
		pandoc = "pandoc"
	}
	return &Service{
		renderer: renderer,
		converters: map[Format]converter{
			FormatPDF: func(ctx context.Context, html, title string) (*Result, error) {
				return exportPDF(ctx, cfg.ChromeURL, html, title)
			},
			FormatDOCX: func(ctx context.Context, html, title string) (*Result, error) {
				return exportDOCX(ctx, pandoc, html, title)
			},
		},
		now: time.Now,
	}
}

// ExportResume renders r in its visible section order and converts it.
func (s *Service) ExportResume(ctx context.Context, r resume.Resume, format Format) (*Result, error) {
	convert, ok := s.converters[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	html, err := s.ResumeHTML(r)
	if err != nil {
		return nil, err
	}
	title := r.Name
	if title == "" {
		title = "resume"
	} else {
		title += " resume"
	}
	return convert(ctx, html, title)
}

// ResumeHTML renders the printable résumé page.
func (s *Service) ResumeHTML(r resume.Resume) (string, error) {
	r = resume.Normalize(r)
	summary, err := s.renderer.Markdown(r.Summary)
	if err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	sections := make([]string, 0, len(r.SectionOrder))
	for _, key := range r.VisibleSections() {
		sections = append(sections, string(key))
	}
	html, err := RenderResumeHTML(TemplateData{
		Resume:      r,
		SummaryHTML: template.HTML(summary),
		Sections:    sections,
		Generated:   s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return html, nil
}
