package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panorama/internal/capture"
	"github.com/MeKo-Tech/panorama/internal/config"
	"github.com/MeKo-Tech/panorama/internal/stitch"
)

func (c *cli) newEstimateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the homography from a points file",
		Long: `Estimate the homography mapping image A onto image B from the
correspondences in a points file and print the matrix with per-pair
residuals. No images are read.

Examples:
  panorama estimate --points points.yaml
  panorama estimate -p points.json --format json`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			points, _ := cmd.Flags().GetString("points")
			if points == "" {
				return errors.New("no points file provided (use --points)")
			}
			cfg := c.config()
			if err := validateOutputFormat(cfg.Output.Format); err != nil {
				return err
			}
			st, err := c.newStitcher(cfg)
			if err != nil {
				return err
			}

			est, err := st.Estimate(cmd.Context(), capture.FileProvider{Path: points})
			if err != nil {
				return fmt.Errorf("estimation failed: %w", err)
			}

			report := stitch.EstimateToText(est)
			if cfg.Output.Format == outputFormatJSON {
				if report, err = stitch.EstimateToJSON(est); err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
			}
			return writeReport(cmd, cfg.Output.File, report)
		},
	}

	cmd.Flags().StringP("points", "p", "", "points file with correspondences (YAML or JSON)")
	cmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	d := config.DefaultConfig()
	cmd.Flags().Float64("rank-tolerance", d.Estimator.RankTolerance, "relative singular value tolerance for the rank check")
	cmd.Flags().Float64("warn-rmse", d.Estimator.WarnRMSE, "warn when the reprojection RMSE exceeds this many pixels")

	c.bind(cmd, map[string]string{
		"output.format":            "format",
		"output.file":              "output",
		"estimator.rank_tolerance": "rank-tolerance",
		"estimator.warn_rmse":      "warn-rmse",
	})
	return cmd
}
