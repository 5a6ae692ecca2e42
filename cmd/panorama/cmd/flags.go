package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panorama/internal/compose"
	"github.com/MeKo-Tech/panorama/internal/config"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
)

// addCompositorFlags registers the compositing options shared by stitch
// and batch and binds them to the compositor config section.
func (c *cli) addCompositorFlags(cmd *cobra.Command, bindings map[string]string) {
	d := config.DefaultConfig()
	cmd.Flags().String("warp", d.Compositor.Warp,
		"warp mode: "+string(compose.WarpInverse)+", "+string(compose.WarpForward)+" or "+string(compose.WarpNone))
	cmd.Flags().String("sampling", d.Compositor.Sampling, "sampling for inverse warping: bilinear or nearest")
	cmd.Flags().String("overlap", d.Compositor.Overlap, "overlap policy: a (A over B), b (B over A) or blend")
	cmd.Flags().String("background", d.Compositor.Background, "canvas background colour (hex, white, black, transparent)")
	cmd.Flags().Int("max-canvas-pixels", d.Compositor.MaxCanvasPixels, "refuse canvases larger than this many pixels")
	cmd.Flags().Float64("warn-rmse", d.Estimator.WarnRMSE, "warn when the reprojection RMSE exceeds this many pixels")
	cmd.Flags().String("debug-dir", "", "directory to write correspondence and footprint overlays")

	bindings["compositor.warp"] = "warp"
	bindings["compositor.sampling"] = "sampling"
	bindings["compositor.overlap"] = "overlap"
	bindings["compositor.background"] = "background"
	bindings["compositor.max_canvas_pixels"] = "max-canvas-pixels"
	bindings["estimator.warn_rmse"] = "warn-rmse"
	bindings["output.debug_dir"] = "debug-dir"
}
