package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panorama/internal/config"
	"github.com/MeKo-Tech/panorama/internal/stitch"
)

// batchReport is the JSON form of a batch run.
type batchReport struct {
	Stats   stitch.BatchStats  `json:"stats"`
	Results []stitch.JobResult `json:"results"`
}

func (c *cli) newBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Stitch many image pairs listed in a manifest",
		Long: `Stitch every job listed in a YAML manifest using parallel workers.

The manifest lists jobs with paths relative to the manifest file:

  jobs:
    - name: hall
      image_a: hall/left.jpg
      image_b: hall/right.jpg
      points: hall/points.yaml
      output: out/hall.png

Examples:
  panorama batch jobs.yaml
  panorama batch jobs.yaml --workers 8 --continue-on-error
  panorama batch jobs.yaml --progress --format json --report batch.json`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			if err := validateOutputFormat(cfg.Output.Format); err != nil {
				return err
			}
			manifest, err := stitch.LoadManifest(args[0])
			if err != nil {
				return err
			}
			st, err := c.newStitcher(cfg)
			if err != nil {
				return err
			}

			bc := cfg.ToBatchConfig()
			if progress, _ := cmd.Flags().GetBool("progress"); progress {
				bc.ProgressCallback = stitch.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Stitching")
			} else {
				bc.ProgressCallback = stitch.NewLogProgressCallback(c.logger, slog.LevelInfo)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			results, stats, runErr := st.RunBatch(ctx, manifest.Jobs, bc)

			var report string
			if cfg.Output.Format == outputFormatJSON {
				b, err := json.MarshalIndent(batchReport{Stats: stats, Results: results}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				report = string(b)
			} else {
				report = formatBatchText(results, stats)
			}
			if err := writeReport(cmd, cfg.Output.File, report); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("batch failed: %w", runErr)
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", stats.Failed, stats.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntP("workers", "w", config.DefaultConfig().Batch.Workers, "number of parallel workers")
	cmd.Flags().Bool("continue-on-error", false, "continue with remaining jobs after a failure")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	cmd.Flags().StringP("format", "f", outputFormatText, "report format (text, json)")
	cmd.Flags().String("report", "", "write the report to this file instead of stdout")

	bindings := map[string]string{
		"batch.workers":           "workers",
		"batch.continue_on_error": "continue-on-error",
		"output.format":           "format",
		"output.file":             "report",
	}
	c.addCompositorFlags(cmd, bindings)
	c.bind(cmd, bindings)
	return cmd
}

func formatBatchText(results []stitch.JobResult, stats stitch.BatchStats) string {
	var sb strings.Builder
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(&sb, "FAIL %s: %s\n", r.Name, r.Error)
		case r.Summary == nil:
			fmt.Fprintf(&sb, "SKIP %s\n", r.Name)
		default:
			fmt.Fprintf(&sb, "OK   %s -> %s (%dx%d, rmse %.4f px, %v)\n",
				r.Name, r.Output, r.Summary.Canvas.Width, r.Summary.Canvas.Height,
				r.Summary.Estimate.RMSE, time.Duration(r.Duration).Round(time.Millisecond))
		}
	}
	fmt.Fprintf(&sb, "%d jobs: %d succeeded, %d failed, %d skipped (%d workers, %v)",
		stats.Total, stats.Succeeded, stats.Failed, stats.Skipped, stats.Workers,
		time.Duration(stats.TotalNs).Round(time.Millisecond))
	return sb.String()
}
