package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio/api/internal/snapshot"
	"portfolio/api/internal/store"
)

func (c *cli) migrateCmd() *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if down > 0 {
				db, err := store.Open(ctx, c.cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer db.Close()
				reverted, err := store.RollbackMigrations(ctx, db, c.cfg.MigrationsDir, down)
				if err != nil {
					return err
				}
				c.logger.Info("migrations reverted", zap.Strings("versions", reverted))
				return nil
			}
			db, err := c.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			c.logger.Info("schema up to date", zap.String("dir", c.cfg.MigrationsDir))
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "revert this many of the newest applied migrations instead")
	return cmd
}

func (c *cli) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the starter site into the database",
		Long: `seed inserts every page of the site file, with its blocks, that the
database does not already have. Without --file the bundled site is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			site, err := snapshot.Bundled()
			if err != nil {
				return err
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read site file: %w", err)
				}
				if site, err = snapshot.Decode(data); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			db, err := c.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			inserted, err := store.Seed(ctx, store.NewPostgresStore(db), site)
			if err != nil {
				return err
			}
			c.logger.Info("site seeded", zap.Int("pages", inserted), zap.Int("skipped", len(site.Pages)-inserted))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "site YAML file in the bundled site.yaml layout")
	return cmd
}

func (c *cli) reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Meilisearch indexes from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.MeiliURL == "" {
				return errors.New("MEILI_URL is not set")
			}
			ctx := cmd.Context()
			b, err := c.openBackend(ctx, nil)
			if err != nil {
				return err
			}
			defer b.Close()
			searchService, meili := c.searchService(b)
			defer meili.Close()

			site, err := b.store.Snapshot(ctx)
			if err != nil {
				return err
			}
			return searchService.ReindexAll(ctx, site)
		},
	}
}
