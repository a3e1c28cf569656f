// Package cli implements the selectionctl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"stablehand/internal/app"
	"stablehand/internal/platform/config"
	"stablehand/internal/platform/logger"
	"stablehand/internal/selection/metrics"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the config source shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string

	// LoadConfig defaults to config.Load. Tests replace it.
	LoadConfig func() (*config.Config, error)
}

// NewRootCommand creates the selectionctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selectionctl",
		Short: "Operate stablehand routine selection",
		Long:  "Operator tooling for stablehand: schema migration, turn order previews and history archive maintenance.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	return cmd
}

// logger writes diagnostics to stderr so JSON output stays parseable.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return logger.NewWithWriter(w, level, "text")
}

// build wires the service against the configured stores. The CLI keeps its
// own metrics registry since nothing scrapes it.
func (o *RootOptions) build(ctx context.Context, cmd *cobra.Command) (*app.App, *config.Config, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	components, err := app.Build(ctx, cfg, o.logger(cmd.ErrOrStderr()), app.Options{
		Metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
	})
	if err != nil {
		return nil, nil, err
	}
	return components, cfg, nil
}
