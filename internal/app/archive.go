package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"portfolio/api/internal/history"
	"portfolio/api/internal/snapshot"
	"portfolio/api/internal/store"
)

type siteSource interface {
	Snapshot(ctx context.Context) (store.SiteSnapshot, error)
}

type archiveRequest struct {
	author  string
	message string
}

// Archiver records the site in the history repository and publishes it to
// object storage after writes. Requests arriving while one is pending are
// folded into it; the snapshot taken then covers them all.
type Archiver struct {
	source    siteSource
	history   *history.Service
	publisher *snapshot.Publisher
	logger    *zap.Logger
	pending   chan archiveRequest
}

func NewArchiver(source siteSource, hist *history.Service, publisher *snapshot.Publisher, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		source:    source,
		history:   hist,
		publisher: publisher,
		logger:    logger,
		pending:   make(chan archiveRequest, 1),
	}
}

// Request queues an archive run without blocking.
func (a *Archiver) Request(author, message string) {
	select {
	case a.pending <- archiveRequest{author: author, message: message}:
	default:
	}
}

// Run processes requests until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-a.pending:
			if err := a.Archive(ctx, req.author, req.message); err != nil {
				a.logger.Warn("archive failed", zap.String("message", req.message), zap.Error(err))
			}
		}
	}
}

// Archive snapshots the site, commits it to history and publishes it.
func (a *Archiver) Archive(ctx context.Context, author, message string) error {
	site, err := a.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot site: %w", err)
	}
	var errs []error
	if a.history != nil {
		info, changed, err := a.history.Record(site, author, message)
		if err != nil {
			errs = append(errs, fmt.Errorf("record history: %w", err))
		} else if changed {
			a.logger.Debug("history recorded", zap.String("hash", info.Hash))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, site); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
