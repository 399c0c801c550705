package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artswap/artswap/internal/output"
)

var searchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Query the replacement card index",
	Long:  "Query the configured replacement card index and print the candidates in index order.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		target, err := outputTargetFromFlags(cmd)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		handle, err := openIndex(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer handle.Close() // nolint:errcheck // best-effort cleanup

		name := strings.TrimSpace(strings.Join(args, " "))
		cards, err := handle.Index.SearchCards(cmd.Context(), name)
		if err != nil {
			return err
		}

		sink, err := target.open(name+".search", format)
		if err != nil {
			return err
		}
		defer sink.Close() // nolint:errcheck // best-effort cleanup

		rendered, err := output.NewFormatter(format).FormatCards(cards)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("output-format", "", "Output format: table|json|markdown")
	searchCmd.Flags().String("out", "", "Write output to a file (default stdout)")
}
