package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio/api/internal/config"
	"portfolio/api/internal/logging"
)

// cli holds what every subcommand shares once the root command has loaded it.
type cli struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "portfolio",
		Short: "Portfolio site content API",
		Long: `portfolio serves the pages, blocks, résumé and inbox of a single-owner
portfolio site. Without a subcommand it runs the HTTP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: c.runServe,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file; keys are the environment variable names")
	root.AddCommand(c.serveCmd(), c.migrateCmd(), c.seedCmd(), c.reindexCmd())
	return root
}

func (c *cli) init() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}
