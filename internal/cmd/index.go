package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/cardfile"
	"github.com/artswap/artswap/internal/config"
	"github.com/artswap/artswap/internal/metrics"
	"github.com/artswap/artswap/internal/observability"
	"github.com/artswap/artswap/internal/output"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the local replacement card index",
	Long: `Manage the replacement card index kept in the local store.

The store index is what "match" searches when index.driver is "store".`,
}

var indexImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import cards from a json, yaml, toml or text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")

		cards, err := cardfile.Read(args[0])
		if err != nil {
			return err
		}
		if source = strings.TrimSpace(source); source != "" {
			for i := range cards {
				if cards[i].Source == "" {
					cards[i].Source = source
				}
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		lock := flock.New(importLockPath(cfg))
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire import lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("another import is already running against %s", storeLocation(cfg))
		}
		defer func() { _ = lock.Unlock() }()

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		written, err := db.ImportCards(ctx, cards)
		if err != nil {
			return err
		}
		metrics.RecordImport(written)

		observability.CLILogger.Info("Cards imported",
			zap.String("file", args[0]),
			zap.Int("read", len(cards)),
			zap.Int("written", written),
			zap.String("store", storeLocation(cfg)))
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d cards into %s\n", written, len(cards), storeLocation(cfg))
		return nil
	},
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		if limit < 0 || offset < 0 {
			return fmt.Errorf("--limit and --offset must not be negative")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		cards, err := db.ListCards(ctx, limit, offset)
		if err != nil {
			return err
		}
		rendered, err := output.NewFormatter(format).FormatCards(cards)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)

		if total, err := db.CountCards(ctx); err == nil && format != output.FormatJSON {
			fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d cards\n", len(cards), total)
		}
		return nil
	},
}

var indexClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove indexed cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		yes, _ := cmd.Flags().GetBool("yes")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		scope := "all cards"
		if strings.TrimSpace(source) != "" {
			scope = fmt.Sprintf("cards from source %q", source)
		}
		if !yes {
			fmt.Fprintf(cmd.OutOrStdout(), "Remove %s from %s? [y/N]: ", scope, storeLocation(cfg))
			reader := bufio.NewReader(cmd.InOrStdin())
			answer, _ := reader.ReadString('\n')
			answer = strings.ToLower(strings.TrimSpace(answer))
			if answer != "y" && answer != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		removed, err := db.ClearCards(ctx, source)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cards\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexImportCmd)
	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexClearCmd)

	indexImportCmd.Flags().String("source", "", "source label for cards that do not carry one")

	indexListCmd.Flags().Int("limit", 50, "maximum cards to list")
	indexListCmd.Flags().Int("offset", 0, "cards to skip")
	indexListCmd.Flags().String("output-format", "", "Output format: table|json|markdown")

	indexClearCmd.Flags().String("source", "", "only remove cards from this source")
	indexClearCmd.Flags().Bool("yes", false, "do not ask for confirmation")
}

// importLockPath serializes imports against the same local database. Remote
// stores share one lock in the cache directory.
func importLockPath(cfg *config.Config) string {
	if cfg != nil && strings.TrimSpace(cfg.Store.URL) == "" {
		return storeLocation(cfg) + ".lock"
	}
	dir := config.DefaultCacheDir()
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "index-import.lock")
}
