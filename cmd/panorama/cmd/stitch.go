package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panorama/internal/config"
	"github.com/MeKo-Tech/panorama/internal/stitch"
	"github.com/MeKo-Tech/panorama/internal/utils"
)

func (c *cli) newStitchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stitch IMAGE_A IMAGE_B",
		Short: "Stitch two images into a panorama",
		Long: `Estimate the homography from IMAGE_A to IMAGE_B using the correspondences
in the points file and compose both images on one canvas in IMAGE_B's frame.

The points file is YAML or JSON, either as two lists

  image_a: [[10, 20], [30, 40], ...]
  image_b: [[110, 25], [130, 45], ...]

or as pairs

  pairs:
    - {a: {x: 10, y: 20}, b: {x: 110, y: 25}}

At least four correspondences, not all on one line, are required.

Examples:
  panorama stitch left.jpg right.jpg --points points.yaml
  panorama stitch left.jpg right.jpg -p points.yaml -o pano.jpg --overlap blend
  panorama stitch left.jpg right.jpg -p points.yaml --format json --report result.json`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			points, _ := cmd.Flags().GetString("points")
			if points == "" {
				return errors.New("no points file provided (use --points)")
			}
			output, _ := cmd.Flags().GetString("output")

			cfg := c.config()
			if err := validateOutputFormat(cfg.Output.Format); err != nil {
				return err
			}
			for _, p := range args {
				if !utils.IsSupportedImage(p) {
					return fmt.Errorf("unsupported image format: %s", p)
				}
			}
			if !utils.IsSupportedImage(output) {
				return fmt.Errorf("unsupported output format: %s", output)
			}

			st, err := c.newStitcher(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := st.StitchFiles(ctx, stitch.Job{
				Name:   strings.TrimSuffix(filepath.Base(output), filepath.Ext(output)),
				ImageA: args[0],
				ImageB: args[1],
				Points: points,
				Output: output,
			})
			if err != nil {
				return fmt.Errorf("stitch failed: %w", err)
			}

			var report string
			if cfg.Output.Format == outputFormatJSON {
				if report, err = stitch.ToJSON(res); err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
			} else {
				report = stitch.ToText(res) + "Panorama written to " + output
			}
			return writeReport(cmd, cfg.Output.File, report)
		},
	}

	cmd.Flags().StringP("points", "p", "", "points file with correspondences (YAML or JSON)")
	cmd.Flags().StringP("output", "o", "panorama.png", "panorama output image (png, jpg, bmp, gif, tiff)")
	cmd.Flags().StringP("format", "f", outputFormatText, "report format (text, json)")
	cmd.Flags().String("report", "", "write the report to this file instead of stdout")

	bindings := map[string]string{
		"output.format": "format",
		"output.file":   "report",
	}
	c.addCompositorFlags(cmd, bindings)
	c.bind(cmd, bindings)
	return cmd
}

// newStitcher builds a stitcher from the loaded configuration.
func (c *cli) newStitcher(cfg *config.Config) (*stitch.Stitcher, error) {
	sc, err := cfg.ToStitchConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return stitch.New(sc, c.logger)
}

func validateOutputFormat(format string) error {
	valid := []string{outputFormatText, outputFormatJSON}
	if !slices.Contains(valid, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(valid, ", "))
	}
	return nil
}

// writeReport prints report to stdout or writes it to file.
func writeReport(cmd *cobra.Command, file, report string) error {
	if file == "" {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), report); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(file, []byte(report+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", file)
	return err
}
