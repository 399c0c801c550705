package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/cardfile"
	"github.com/artswap/artswap/internal/config"
	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/observability"
	"github.com/artswap/artswap/internal/output"
)

var matchCmd = &cobra.Command{
	Use:   "match [card names...]",
	Short: "Match game card images with replacement artwork",
	Long: `Match game card images with replacement artwork.

Cards come from positional names or from --cards (json, yaml, toml or one
name per line; "-" reads names from stdin). Every card gets a result: cards
the index cannot match are paired with the placeholder image.`,
	Example: `  artswap match --game-dir ./game --replacement-dir ./hq "Blue-Eyes White Dragon"
  artswap match --game-dir ./game --replacement-dir ./hq --cards deck.yaml --output-format markdown`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("game-dir", "", "directory holding the game card images (required)")
	matchCmd.Flags().String("replacement-dir", "", "directory holding the replacement images (required)")
	matchCmd.Flags().String("cards", "", "card list file (json|yaml|toml|txt, - for stdin)")
	matchCmd.Flags().String("policy", "", "disambiguation policy when several cards match: first|exact")
	matchCmd.Flags().Int("build-workers", 0, "parallel game image lookups (0 = one per CPU)")
	matchCmd.Flags().Int("resolve-workers", 0, "parallel index searches (1 = sequential)")
	matchCmd.Flags().String("output-format", "", "Output format: table|json|markdown (default table on a terminal, json otherwise)")
	matchCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	matchCmd.Flags().String("out-dir", "", "Write output to a directory")

	_ = matchCmd.MarkFlagRequired("game-dir")
	_ = matchCmd.MarkFlagRequired("replacement-dir")
}

func runMatch(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	target, err := outputTargetFromFlags(cmd)
	if err != nil {
		return err
	}

	cardsFile, _ := cmd.Flags().GetString("cards")
	cards, err := resolveCards(args, cardsFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyPipelineFlags(cmd, cfg)

	ctx := cmd.Context()
	handle, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer handle.Close() // nolint:errcheck // best-effort cleanup

	pipeline, err := buildPipeline(cfg, handle.Index, observability.PipelineLogger(), "cli")
	if err != nil {
		return err
	}

	gameDir, _ := cmd.Flags().GetString("game-dir")
	replDir, _ := cmd.Flags().GetString("replacement-dir")
	report, err := pipeline.Run(ctx, cards, gameDir, replDir)
	if err != nil {
		return err
	}

	sink, err := target.open(filepath.Base(filepath.Clean(gameDir))+".match", format)
	if err != nil {
		return err
	}
	defer sink.Close() // nolint:errcheck // best-effort cleanup

	rendered, err := output.NewFormatter(format).FormatReport(report)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(sink, rendered); err != nil {
		return err
	}

	if !sink.Stdout() {
		observability.CLILogger.Info("Match report written",
			zap.String("path", sink.Path),
			zap.Int("artworks", report.Summary.Total))
	}
	return nil
}

// resolveCards merges positional names and a card file; they are mutually
// exclusive.
func resolveCards(positional []string, cardsFile string) ([]core.Card, error) {
	if path := strings.TrimSpace(cardsFile); path != "" {
		if len(positional) > 0 {
			return nil, fmt.Errorf("cannot combine positional names with --cards")
		}
		cards, err := cardfile.Read(path)
		if err != nil {
			return nil, err
		}
		if len(cards) == 0 {
			return nil, fmt.Errorf("no cards found in %s", path)
		}
		return cards, nil
	}

	cards := make([]core.Card, 0, len(positional))
	for _, raw := range positional {
		if name := strings.TrimSpace(raw); name != "" {
			cards = append(cards, core.Card{Name: name})
		}
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("at least one card name or --cards is required")
	}
	return cards, nil
}

// applyPipelineFlags lets explicitly set flags override the loaded config.
func applyPipelineFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("policy") {
		policy, _ := flags.GetString("policy")
		cfg.Pipeline.Disambiguation = strings.ToLower(strings.TrimSpace(policy))
	}
	if flags.Changed("build-workers") {
		cfg.Pipeline.BuildWorkers, _ = flags.GetInt("build-workers")
	}
	if flags.Changed("resolve-workers") {
		cfg.Pipeline.ResolveWorkers, _ = flags.GetInt("resolve-workers")
	}
}
