package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/artswap/artswap/internal/core/store"
	"github.com/artswap/artswap/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Manage persisted web index rate limit state",
	Long: `Inspect or reset the per-host request windows the web card index
persists in the store. Entries are keyed by host.`,
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := rateLimitQueryFromFlags(cmd)
		if errors.Is(err, store.ErrNoRateLimitSelector) {
			query, err = store.RateLimitQuery{All: true}, nil
		}
		if err != nil {
			return err
		}

		return withRateLimitStore(cmd, "rate-limit.list", func(ctx context.Context, db *store.Store, format output.Format, w io.Writer) error {
			entries, err := db.ListRateLimits(ctx, query)
			if err != nil {
				return err
			}
			return writeRateLimitList(format, w, entries)
		})
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored rate limit windows",
	Example: `  artswap rate-limit reset --host db.ygoprodeck.com
  artswap rate-limit reset --all --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := rateLimitQueryFromFlags(cmd)
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if query.All && !yes && !dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		return withRateLimitStore(cmd, "rate-limit.reset", func(ctx context.Context, db *store.Store, format output.Format, w io.Writer) error {
			matched, err := db.CountRateLimits(ctx, query)
			if err != nil {
				return err
			}
			var deleted int64
			if !dryRun {
				if deleted, err = db.ResetRateLimits(ctx, query); err != nil {
					return err
				}
			}
			return writeRateLimitReset(format, w, rateLimitResetResult{Matched: matched, Deleted: deleted, DryRun: dryRun})
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{rateLimitListCmd, rateLimitResetCmd} {
		c.Flags().Bool("all", false, "select every host")
		c.Flags().String("host", "", "select a single host (exact match)")
		c.Flags().String("prefix", "", "select hosts starting with prefix")
		c.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
		c.Flags().String("out", "", "Write output to a file (default stdout)")
		c.Flags().String("out-dir", "", "Write output to a directory")
		rateLimitCmd.AddCommand(c)
	}
	rateLimitResetCmd.Flags().Bool("yes", false, "confirm a reset of every host")
	rateLimitResetCmd.Flags().Bool("dry-run", false, "report matches without deleting")

	rootCmd.AddCommand(rateLimitCmd)
}

// openConfiguredStore loads the config and opens the store it names.
func openConfiguredStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openStore(ctx, cfg)
}

func rateLimitQueryFromFlags(cmd *cobra.Command) (store.RateLimitQuery, error) {
	all, _ := cmd.Flags().GetBool("all")
	host, _ := cmd.Flags().GetString("host")
	prefix, _ := cmd.Flags().GetString("prefix")
	query := store.RateLimitQuery{All: all, Host: host, Prefix: prefix}
	return query, query.Validate()
}

// withRateLimitStore resolves the output of a rate-limit subcommand, opens
// the configured store and hands both to fn.
func withRateLimitStore(cmd *cobra.Command, stem string, fn func(context.Context, *store.Store, output.Format, io.Writer) error) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	if format != output.FormatJSON && format != output.FormatTable {
		return fmt.Errorf("unsupported output format: %s", format)
	}
	target, err := outputTargetFromFlags(cmd)
	if err != nil {
		return err
	}

	db, err := openConfiguredStore(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	sink, err := target.open(stem, format)
	if err != nil {
		return err
	}
	defer sink.Close() // nolint:errcheck // best-effort cleanup

	return fn(cmd.Context(), db, format, sink)
}

type rateLimitView struct {
	Host         string     `json:"host"`
	RequestCount int        `json:"request_count"`
	WindowStart  time.Time  `json:"window_start"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
	Last429At    *time.Time `json:"last_429_at,omitempty"`
}

func writeRateLimitList(format output.Format, w io.Writer, entries []store.RateLimitEntry) error {
	views := make([]rateLimitView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, rateLimitView{
			Host:         entry.Host,
			RequestCount: entry.State.RequestCount,
			WindowStart:  entry.State.WindowStart,
			BackoffUntil: entry.State.BackoffUntil,
			Last429At:    entry.State.Last429At,
		})
	}

	if format == output.FormatJSON {
		return writeIndentedJSON(w, views)
	}
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "(no stored rate limit state)")
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Rate Limits")
	t.AppendHeader(table.Row{"Host", "Requests", "Window Start", "Backoff Until", "Last 429"})
	for _, view := range views {
		t.AppendRow(table.Row{
			view.Host,
			view.RequestCount,
			formatOptionalTime(&view.WindowStart),
			formatOptionalTime(view.BackoffUntil),
			formatOptionalTime(view.Last429At),
		})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

type rateLimitResetResult struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

func writeRateLimitReset(format output.Format, w io.Writer, result rateLimitResetResult) error {
	if format == output.FormatJSON {
		return writeIndentedJSON(w, result)
	}
	if result.DryRun {
		_, err := fmt.Fprintf(w, "Would delete %d rate limit window(s)\n", result.Matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d of %d rate limit window(s)\n", result.Deleted, result.Matched)
	return err
}

func writeIndentedJSON(w io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func formatOptionalTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
