// Package command assembles the regdelta command-line interface.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v2"

	"github.com/meigma/regdelta"
	"github.com/meigma/regdelta/config"
)

// NewApp builds the CLI. The given context is installed as the root
// context for every command, so canceling it aborts in-flight transfers.
func NewApp(ctx context.Context) *cli.App {
	return &cli.App{
		Name:  "regdelta",
		Usage: "move container images into air-gapped registries by shipping only changed blobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "registry",
				Usage: "staging registry base `URL`",
			},
			&cli.StringFlag{
				Name:  "container",
				Usage: "registry container `NAME` for restart and garbage collection",
			},
			&cli.StringFlag{
				Name:  "storage-root",
				Usage: "registry storage `DIR`; when mounted here, restores write it directly",
			},
			&cli.BoolFlag{
				Name:  "force-api",
				Usage: "restore through the registry API even when the storage root is mounted",
			},
			&cli.StringFlag{
				Name:  "copy-tool",
				Usage: "use the named copy `TOOL` (skopeo) instead of the container engine",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "parallel blob transfers",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			c.Context = ctx
			return nil
		},
		Commands: []*cli.Command{
			diffCommand,
			loadCommand,
			pushCommand,
			pullCommand,
			deleteCommand,
			listCommand,
			seedCommand,
		},
	}
}

// loadConfig reads the environment once and lets flags override it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("registry") {
		cfg.RegistryURL = c.String("registry")
	}
	if c.IsSet("container") {
		cfg.Container = c.String("container")
	}
	if c.IsSet("storage-root") {
		cfg.StorageRoot = c.String("storage-root")
	}
	if c.IsSet("force-api") {
		cfg.ForceAPI = c.Bool("force-api")
	}
	if c.IsSet("copy-tool") {
		cfg.CopyTool = c.String("copy-tool")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	return cfg, nil
}

// newClient builds the delta client for a command invocation. The caller
// closes it.
func newClient(c *cli.Context, extra ...regdelta.Option) (*regdelta.Client, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts := append([]regdelta.Option{
		regdelta.WithConfig(cfg),
		regdelta.WithLogger(newLogger(c.Bool("verbose"))),
	}, extra...)
	return regdelta.New(opts...)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// formatSize renders a byte count with a binary unit suffix.
func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
