package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/cwarden/afisha/internal/afisha"
	"github.com/cwarden/afisha/internal/config"
	"github.com/cwarden/afisha/internal/listing"
	"github.com/cwarden/afisha/internal/parser"
	"github.com/cwarden/afisha/internal/ui"
)

var (
	cfgFile     string
	strapiURL   string
	fixtureFile string
	dateArg     string
	filterArg   string
	playID      int
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "afisha",
	Short: "A terminal playbill for a Strapi performance collection",
	Long: `Afisha lists upcoming theatre performances from a Strapi CMS, grouped by
day. More performances load as you scroll; the list can be narrowed to a
single day and filtered by title.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default searches $AFISHA_CONFIG, ~/.config/afisha/afisharc, ~/.afisharc)")
	rootCmd.PersistentFlags().StringVar(&strapiURL, "url", "", "Strapi base URL (overrides config and STRAPI_URL)")
	rootCmd.PersistentFlags().StringVar(&fixtureFile, "fixture", "", "Read performances from a YAML/JSON fixture instead of Strapi")
	rootCmd.PersistentFlags().StringVarP(&dateArg, "date", "d", "", "Only show this day (2024-05-01, 01.05, tomorrow, next fri)")
	rootCmd.PersistentFlags().StringVarP(&filterArg, "filter", "f", "", "Only show performances whose title contains this text")
	rootCmd.PersistentFlags().IntVar(&playID, "play", 0, "Only show performances of this play id")
}

func initConfig() {
	if cfgFile != "" {
		os.Setenv("AFISHA_CONFIG", cfgFile)
	}

	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if strapiURL != "" {
		cfg.StrapiURL = strapiURL
	}
	if fixtureFile != "" {
		cfg.FixtureFile = fixtureFile
	}
}

// setupLogging installs the default logger. Commands that own the terminal
// log to the file only.
func setupLogging(withStderr bool) (*slog.Logger, func()) {
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel, withStderr)
	slog.SetDefault(logger)
	return logger, func() {
		if err := cleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
		}
	}
}

// newSource picks the fixture file when one is configured and the Strapi
// REST API otherwise.
func newSource(logger *slog.Logger) (afisha.Source, error) {
	if cfg.FixtureFile != "" {
		src, err := afisha.NewFileSource(cfg.FixtureFile, logger)
		if err != nil {
			return nil, fmt.Errorf("error loading fixture: %w", err)
		}
		return src, nil
	}

	client := afisha.NewStrapiClient(cfg.StrapiURL)
	client.Token = cfg.APIToken
	client.Collection = cfg.Collection
	client.HTTPClient.Timeout = cfg.RequestTimeout
	client.Logger = logger
	return client, nil
}

func newController(source afisha.Source, logger *slog.Logger, clock clockwork.Clock) (*listing.Controller, error) {
	return listing.New(listing.Config{
		Source:     source,
		Logger:     logger,
		Clock:      clock,
		Locale:     cfg.Locale,
		DatePolicy: cfg.DatePolicy,
		PageSize:   cfg.PageSize,
		PlayID:     playID,
	})
}

func parseDateArg(clock clockwork.Clock) (afisha.Date, error) {
	date, err := parser.NewDateParser(clock).Parse(dateArg)
	if err != nil {
		return afisha.Date{}, fmt.Errorf("invalid --date: %w", err)
	}
	return date, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	logger, cleanup := setupLogging(false)
	defer cleanup()

	clock := clockwork.NewRealClock()
	date, err := parseDateArg(clock)
	if err != nil {
		return err
	}

	source, err := newSource(logger)
	if err != nil {
		return err
	}

	ctrl, err := newController(source, logger, clock)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	opts := ui.Options{
		Clock:  clock,
		Logger: logger,
		Date:   date,
		Filter: filterArg,
	}
	if ws, ok := source.(afisha.WatchableSource); ok && cfg.AutoRefresh {
		events, err := ws.Watch()
		if err != nil {
			logger.Warn("watching source failed", "error", err)
		} else {
			opts.Watch = events
			defer ws.StopWatching()
		}
	}

	logger.Info("starting", "source", describeSource(source), "date", date.String(), "filter", filterArg)

	// Start TUI
	model := ui.NewModel(cmd.Context(), cfg, ctrl, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}

	return nil
}

func describeSource(source afisha.Source) string {
	switch s := source.(type) {
	case *afisha.StrapiClient:
		return s.Endpoint()
	case *afisha.FileSource:
		return s.Path
	default:
		return fmt.Sprintf("%T", source)
	}
}
