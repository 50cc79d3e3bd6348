package cmd

import (
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/cwarden/afisha/internal/listing"
)

var listPages int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the performance listing and exit",
	Long: `Print performances grouped by day in a simple text format and exit.
Pages are fetched the same way the interactive view fetches them; --pages
limits how many (0 loads every page).`,
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVarP(&listPages, "pages", "p", 1, "Number of pages to fetch (0 for all)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	// Ensure config is loaded
	if cfg == nil {
		initConfig()
	}

	logger, cleanup := setupLogging(true)
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

	ctrl.SetFilter(filterArg)
	v, err := loadPages(cmd, ctrl, ctrl.SetDate(date), listPages)
	if err != nil {
		return err
	}

	printListing(cmd.OutOrStdout(), ctrl, v)
	if v.Err != nil {
		return fmt.Errorf("error getting performances: %w", v.Err)
	}
	return nil
}

// loadPages drives the controller synchronously: the first page, then
// appends until pages have been fetched or the collection is exhausted.
func loadPages(cmd *cobra.Command, ctrl *listing.Controller, req listing.Request, pages int) (listing.View, error) {
	ctx := cmd.Context()
	for fetched := 0; ; fetched++ {
		if err := ctx.Err(); err != nil {
			return listing.View{}, err
		}

		ctrl.Load(ctx, req)
		if pages > 0 && fetched+1 >= pages {
			break
		}

		next, ok := ctrl.LoadMore()
		if !ok {
			break
		}
		req = next
	}
	return ctrl.View(), nil
}

func printListing(w io.Writer, ctrl *listing.Controller, v listing.View) {
	locale := ctrl.Locale()
	msgs := locale.Messages()

	for i, g := range v.Groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		label := g.Label
		if cfg.DateFormat != "" {
			label = g.Date.Start().Format(cfg.DateFormat)
		}
		fmt.Fprintf(w, "%s:\n", label)

		for _, p := range g.Items {
			title := p.Title()
			if title == "" {
				title = msgs.Untitled
			}
			fmt.Fprintf(w, "  %s  %s\n", p.StartsAt.UTC().Format(cfg.TimeFormat), title)
		}
	}

	switch {
	case v.Empty():
		fmt.Fprintln(w, msgs.Empty)
	case !v.HasMore:
		fmt.Fprintf(w, "\n%s\n", msgs.NoMore)
	default:
		fmt.Fprintf(w, "\n%d/%d+\n", v.Shown, v.Loaded)
	}
}
