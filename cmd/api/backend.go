package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portfolio/api/internal/app"
	"portfolio/api/internal/search"
	"portfolio/api/internal/session"
	"portfolio/api/internal/snapshot"
	"portfolio/api/internal/store"
)

const (
	modePostgres = "postgres"
	modeMemory   = "memory"
	modeReadOnly = "read-only"
)

// backend is the content store picked at startup.
type backend struct {
	store app.DataStore
	db    *sql.DB
	mode  string
}

func (b *backend) Close() {
	if b.db != nil {
		_ = b.db.Close()
	}
}

// openDatabase connects to Postgres and brings the schema up to date.
func (c *cli) openDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := store.Open(ctx, c.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	applied, err := store.ApplyMigrations(ctx, db, c.cfg.MigrationsDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	if len(applied) > 0 {
		c.logger.Info("migrations applied", zap.Strings("versions", applied))
	}
	return db, nil
}

// openBackend returns the Postgres store, or the bundled site in memory when
// configured so. An unreachable database degrades to a read-only copy of the
// latest published snapshot.
func (c *cli) openBackend(ctx context.Context, publisher *snapshot.Publisher) (*backend, error) {
	if c.cfg.StoreMode == modeMemory {
		site, err := snapshot.Bundled()
		if err != nil {
			return nil, err
		}
		mem := store.NewMemoryStore()
		mem.Load(site)
		return &backend{store: mem, mode: modeMemory}, nil
	}

	db, err := c.openDatabase(ctx)
	if err == nil {
		return &backend{store: store.NewPostgresStore(db), db: db, mode: modePostgres}, nil
	}
	c.logger.Warn("database unavailable, serving read-only content", zap.Error(err))

	site, source, fallbackErr := snapshot.Fallback(ctx, publisher, c.logger)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	c.logger.Info("read-only snapshot loaded", zap.String("source", source), zap.Int("pages", len(site.Pages)))
	return &backend{store: store.NewReadOnlyMemoryStore(site), mode: modeReadOnly}, nil
}

// openPublisher connects to object storage; nil when unconfigured or unreachable.
func (c *cli) openPublisher(ctx context.Context) *snapshot.Publisher {
	if strings.TrimSpace(c.cfg.MinioEndpoint) == "" {
		return nil
	}
	publisher, err := snapshot.NewMinioPublisher(ctx, snapshot.MinioConfig{
		Endpoint:  c.cfg.MinioEndpoint,
		AccessKey: c.cfg.MinioAccessKey,
		SecretKey: c.cfg.MinioSecretKey,
		Bucket:    c.cfg.MinioBucket,
		UseSSL:    c.cfg.MinioUseSSL,
	}, c.logger)
	if err != nil {
		c.logger.Warn("snapshot publication disabled", zap.Error(err))
		return nil
	}
	return publisher
}

// connectRedis returns nil when Redis is unconfigured or unreachable; callers
// fall back to in-process sessions, results and notifications.
func (c *cli) connectRedis(ctx context.Context) *redis.Client {
	if strings.TrimSpace(c.cfg.RedisURL) == "" {
		return nil
	}
	client, err := session.Connect(ctx, c.cfg.RedisURL)
	if err != nil {
		c.logger.Warn("redis unavailable, using in-process state", zap.Error(err))
		return nil
	}
	return client
}

// searchService prefers Meilisearch; the fallback is Postgres full-text search
// or, without a database, a scan of the current content.
func (c *cli) searchService(b *backend) (*search.Service, *search.Meili) {
	var meili *search.Meili
	if strings.TrimSpace(c.cfg.MeiliURL) != "" {
		meili = search.NewMeili(c.cfg.MeiliURL, c.cfg.MeiliMasterKey, c.logger)
	}
	var fallback search.Searcher = search.NewScan(b.store)
	if b.db != nil {
		fallback = search.NewPgFTS(b.db)
	}
	return search.NewService(meili, fallback, c.logger), meili
}
