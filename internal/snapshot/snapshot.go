// Package snapshot publishes the whole site to object storage and loads it back
// when the database is unavailable.
package snapshot

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"portfolio/api/internal/resume"
	"portfolio/api/internal/store"
)

// ObjectName is the key of the latest published snapshot.
const ObjectName = "site-snapshot.json"

//go:embed site.yaml
var bundledSite []byte

// Bundled returns the site shipped with the binary: the seed pages plus the
// default résumé.
func Bundled() (store.SiteSnapshot, error) {
	site, err := Decode(bundledSite)
	if err != nil {
		return store.SiteSnapshot{}, fmt.Errorf("bundled site: %w", err)
	}
	data, err := json.Marshal(resume.Default())
	if err != nil {
		return store.SiteSnapshot{}, fmt.Errorf("encode bundled resume: %w", err)
	}
	site.Resume = data
	return site, nil
}

// Decode parses a site file laid out like the bundled site.yaml. The résumé is
// not part of the file.
func Decode(data []byte) (store.SiteSnapshot, error) {
	var site store.SiteSnapshot
	if err := yaml.Unmarshal(data, &site); err != nil {
		return store.SiteSnapshot{}, fmt.Errorf("decode site: %w", err)
	}
	for _, item := range site.Pages {
		if item.ID == "" {
			return store.SiteSnapshot{}, errors.New("decode site: page without id")
		}
	}
	return site, nil
}

type objectStore interface {
	put(ctx context.Context, name string, data []byte) error
	get(ctx context.Context, name string) ([]byte, error)
}

// Publisher writes and reads the published site snapshot.
type Publisher struct {
	objects objectStore
	logger  *zap.Logger
}

func (p *Publisher) Publish(ctx context.Context, site store.SiteSnapshot) error {
	data, err := json.Marshal(site)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.objects.put(ctx, ObjectName, data); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	p.logger.Debug("site snapshot published", zap.Int("pages", len(site.Pages)), zap.Int("bytes", len(data)))
	return nil
}

// Latest returns the last published snapshot or store.ErrNotFound.
func (p *Publisher) Latest(ctx context.Context) (store.SiteSnapshot, error) {
	data, err := p.objects.get(ctx, ObjectName)
	if err != nil {
		return store.SiteSnapshot{}, err
	}
	var site store.SiteSnapshot
	if err := json.Unmarshal(data, &site); err != nil {
		return store.SiteSnapshot{}, fmt.Errorf("decode published snapshot: %w", err)
	}
	return site, nil
}

// Fallback picks the content served in read-only mode: the latest published
// snapshot when publisher is set and has one, else the bundled site.
func Fallback(ctx context.Context, publisher *Publisher, logger *zap.Logger) (store.SiteSnapshot, string, error) {
	if publisher != nil {
		site, err := publisher.Latest(ctx)
		if err == nil {
			return site, "published", nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("published snapshot unavailable", zap.Error(err))
		}
	}
	site, err := Bundled()
	if err != nil {
		return store.SiteSnapshot{}, "", err
	}
	return site, "bundled", nil
}
