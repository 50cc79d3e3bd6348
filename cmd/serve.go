package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwarden/afisha/internal/afisha"
	"github.com/cwarden/afisha/internal/fixture"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve-fixture FILE",
	Short: "Serve a fixture file as a Strapi-compatible REST collection",
	Long: `Serve the performances of a YAML or JSON fixture over HTTP with Strapi's
filter, sort and pagination query syntax, for local development without a
CMS. The file is reloaded when it changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:1337", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg == nil {
		initConfig()
	}

	path := cfg.FixtureFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no fixture file given")
	}

	logger, cleanup := setupLogging(true)
	defer cleanup()

	src, err := afisha.NewFileSource(path, logger)
	if err != nil {
		return fmt.Errorf("error loading fixture: %w", err)
	}

	events, err := src.Watch()
	if err != nil {
		logger.Warn("watching fixture failed", "error", err)
	} else {
		defer src.StopWatching()
		go func() {
			for ev := range events {
				logger.Info("fixture reloaded", "path", ev.Path, "performances", src.Store().Len())
			}
		}()
	}

	srv := fixture.NewServer(src.Store(), cfg.Collection, logger)
	return srv.ListenAndServe(cmd.Context(), serveAddr)
}
