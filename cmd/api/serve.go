package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio/api/internal/app"
	"portfolio/api/internal/command"
	"portfolio/api/internal/email"
	"portfolio/api/internal/history"
	"portfolio/api/internal/realtime"
	"portfolio/api/internal/session"
	"portfolio/api/internal/store"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  c.runServe,
	}
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := c.openPublisher(ctx)
	b, err := c.openBackend(ctx, publisher)
	if err != nil {
		return err
	}
	defer b.Close()

	redisClient := c.connectRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}

	searchService, meili := c.searchService(b)
	if meili != nil {
		defer meili.Close()
	}

	hist := history.New(c.cfg.HistoryDir)
	var archiver *app.Archiver
	if !b.store.ReadOnly() {
		archiver = app.NewArchiver(b.store, hist, publisher, c.logger)
	}

	deps := app.Deps{
		Store:   b.store,
		Search:  searchService,
		History: hist,
		Email: email.NewService(email.Config{
			Host:     c.cfg.SMTPHost,
			Port:     c.cfg.SMTPPort,
			Username: c.cfg.SMTPUsername,
			Password: c.cfg.SMTPPassword,
			From:     c.cfg.SMTPFrom,
			FromName: c.cfg.SMTPFromName,
		}),
		Archiver: archiver,
		Logger:   c.logger,
	}
	var results command.ResultStore = command.NewMemoryResults()
	if redisClient != nil {
		deps.Sessions = session.NewRedisStoreWithClient(redisClient)
		results = command.NewRedisResults(redisClient)
	} else if b.db != nil {
		deps.Sessions = store.NewPostgresStore(b.db)
	}

	service := app.New(c.cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		c.logger.Warn("bootstrap incomplete, will retry on next restart", zap.Error(err))
	}

	var relay *realtime.RedisRelay
	if redisClient != nil {
		relay = realtime.NewRedisRelay(redisClient, c.cfg.RealtimeChannel, service.Hub(), c.logger)
		service.SetNotifier(relay)
	}

	opts := command.DefaultOptions()
	opts.Transient = app.Transient
	queue := command.NewQueue(results, opts, c.logger)

	server := &http.Server{
		Addr:              c.cfg.Addr,
		Handler:           app.NewHTTPServer(service, queue, c.cfg.CORSOrigin, c.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		c.logger.Info("portfolio api listening", zap.String("addr", c.cfg.Addr), zap.String("store", b.mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		c.logger.Info("server stopped")
		return nil
	})
	if relay != nil {
		group.Go(func() error {
			if err := relay.Run(groupCtx); err != nil {
				c.logger.Warn("change relay stopped; changes from other instances no longer arrive", zap.Error(err))
			}
			return nil
		})
	}
	if archiver != nil {
		group.Go(func() error {
			return archiver.Run(groupCtx)
		})
	}
	if meili != nil {
		go func() {
			if err := service.Reindex(groupCtx); err != nil {
				c.logger.Warn("initial search reindex skipped", zap.Error(err))
			}
		}()
	}

	return group.Wait()
}
