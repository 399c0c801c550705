package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/core/imagefs"
	"github.com/artswap/artswap/internal/observability"
)

var placeholderCmd = &cobra.Command{
	Use:   "placeholder",
	Short: "Render the placeholder image used for unmatched cards",
	Long: `Render the placeholder image paired with cards the index cannot match.

Without --force an existing image is kept, so a custom placeholder can be
dropped at images.placeholder_path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := cfg.Images.PlaceholderPath
		if cmd.Flags().Changed("path") {
			path, _ = cmd.Flags().GetString("path")
		}
		size := cfg.Images.PlaceholderSize
		if cmd.Flags().Changed("size") {
			size, _ = cmd.Flags().GetInt("size")
		}
		force, _ := cmd.Flags().GetBool("force")

		if strings.TrimSpace(path) == "" {
			path = imagefs.DefaultPlaceholderPath("")
		}

		if force {
			if err := imagefs.WritePlaceholder(path, size); err != nil {
				return err
			}
		} else if _, err := imagefs.EnsurePlaceholder(path, size); err != nil {
			return err
		}

		observability.CLILogger.Debug("Placeholder ready",
			zap.String("path", path),
			zap.Int("width", size),
			zap.Bool("rewritten", force))
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(placeholderCmd)

	placeholderCmd.Flags().String("path", "", "where to write the image (default images.placeholder_path)")
	placeholderCmd.Flags().Int("size", 0, "image width in pixels (default images.placeholder_size)")
	placeholderCmd.Flags().Bool("force", false, "overwrite an existing image")
}
