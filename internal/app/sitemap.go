package app

import (
	"context"
	"encoding/xml"
	"time"
)

type sitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq"`
	Priority   float64 `xml:"priority"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// Sitemap lists the home page followed by one anchor per visible page section.
func (s *Service) Sitemap(ctx context.Context) ([]byte, error) {
	list, err := s.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	base := s.cfg.SiteURL
	now := s.now().UTC().Format(time.DateOnly)
	set := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  []sitemapURL{{Loc: base, LastMod: now, ChangeFreq: "weekly", Priority: 1}},
	}
	for _, page := range list.Pages {
		lastMod := now
		if !page.UpdatedAt.IsZero() {
			lastMod = page.UpdatedAt.UTC().Format(time.DateOnly)
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        base + "/#" + page.ID,
			LastMod:    lastMod,
			ChangeFreq: "monthly",
			Priority:   0.8,
		})
	}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
