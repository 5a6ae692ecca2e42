package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/panorama/internal/config"
	"github.com/MeKo-Tech/panorama/internal/version"
)

// cli carries the state shared by one command tree.
type cli struct {
	loader   *config.Loader
	cfg      *config.Config
	cfgFile  string
	logger   *slog.Logger
	bindings map[*cobra.Command]map[string]string
}

// Execute builds the command tree and runs it. It is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand returns a fresh panorama command tree with its own viper
// instance, so repeated executions (tests) do not share flag state.
func NewRootCommand() *cobra.Command {
	c := &cli{
		loader:   config.NewLoaderWithViper(viper.New()),
		bindings: make(map[*cobra.Command]map[string]string),
	}

	rootCmd := &cobra.Command{
		Use:   "panorama",
		Short: "Stitch two overlapping images into a panorama",
		Long: `Stitch two overlapping photographs into a single panorama.

Given point correspondences between image A and image B, panorama estimates
the planar homography mapping A onto B (direct linear transform) and composes
both images on a common canvas in B's coordinate frame.

This tool provides:
- Homography estimation with residual diagnostics
- Inverse or forward warping with bilinear or nearest sampling
- Batch stitching from a manifest
- An HTTP server with an interactive capture WebSocket

Examples:
  panorama stitch left.jpg right.jpg --points points.yaml -o pano.png
  panorama estimate --points points.yaml --format json
  panorama serve --port 8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, _ := cmd.Flags().GetBool("version")
			if v {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "panorama "+version.String())
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/panorama, /etc/panorama)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	c.bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"verbose":    "verbose",
		"log_level":  "log-level",
		"log_format": "log-format",
	})

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// Subcommands share config keys, so only the running one is bound.
		c.bindFlags(cmd.Flags(), c.bindings[cmd])
		if err := c.load(); err != nil {
			return err
		}
		c.logger = newLogger(cmd.ErrOrStderr(), c.cfg)
		slog.SetDefault(c.logger)
		return nil
	}

	rootCmd.AddCommand(
		c.newStitchCommand(),
		c.newEstimateCommand(),
		c.newBatchCommand(),
		c.newServeCommand(),
		c.newConfigCommand(),
	)
	return rootCmd
}

// load reads the configuration once per command tree.
func (c *cli) load() error {
	if c.cfg != nil {
		return nil
	}
	cfg, err := c.loader.LoadWithFile(c.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	c.cfg = cfg
	return nil
}

// config returns the loaded configuration.
func (c *cli) config() *config.Config {
	if c.cfg == nil {
		d := config.DefaultConfig()
		c.cfg = &d
	}
	return c.cfg
}

// bind records viper keys (mapped to flag names) for cmd's flags.
func (c *cli) bind(cmd *cobra.Command, bindings map[string]string) {
	c.bindings[cmd] = bindings
}

// bindFlags binds flags to viper keys; keys map to flag names.
func (c *cli) bindFlags(flags *pflag.FlagSet, bindings map[string]string) {
	v := c.loader.GetViper()
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

// newLogger builds the slog handler selected by the configuration.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	var level slog.Level
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
