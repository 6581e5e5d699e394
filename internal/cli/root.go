// Package cli is the ashfetch command line: one-off fetches through the configured pipelines.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	ashfetch "github.com/Borislavv/go-ash-fetch"
	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	verbose    bool
}

func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "ashfetch",
		Short: "Fetch images and news pages through the memory, disk and origin tiers",
		Long: `Fetch images and news pages through the memory, disk and origin tiers.

Values are persisted in the configured directory, so repeated runs are served from disk.

Examples:
  ashfetch image https://cdn.example.com/a.jpg --width 120 --height 80 --out a.jpg
  ashfetch page 1 --size 20
  ashfetch prefetch --from 1 --to 10 --size 20
  ashfetch purge`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to the yaml config (defaults plus ASHFETCH_* env when empty)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newImageCommand(flags),
		newPageCommand(flags),
		newPrefetchCommand(flags),
		newPurgeCommand(flags),
	)
	return root
}

func (f *globalFlags) loadConfig() (*config.Fetcher, error) {
	if f.configPath != "" {
		return config.LoadConfig(f.configPath)
	}
	cfg := config.Default()
	if err := config.LoadEnv(cfg); err != nil {
		return nil, err
	}
	cfg.AdjustConfig()
	return cfg, cfg.Validate()
}

func (f *globalFlags) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withClient opens a client for the duration of fn.
func (f *globalFlags) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *ashfetch.Client) error) error {
	cfg, err := f.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := ashfetch.New(cmd.Context(), cfg, f.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(cmd.Context(), c)
}

// output opens path for writing, or returns the command's stdout for "" and "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
