package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/enonic-cloud/docker-duply/internal/backend"
	"github.com/enonic-cloud/docker-duply/internal/config"
	"github.com/enonic-cloud/docker-duply/internal/metrics"
	_ "github.com/enonic-cloud/docker-duply/internal/storage"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func initLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	config := zap.NewProductionConfig()
	config.Level = lvl
	return config.Build()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(int(backend.CodeConfiguration))
	}

	logger, err := initLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	collector, err := metrics.NewCollector(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to create metrics collector", zap.Error(err))
	}

	app := &application{
		config:    cfg,
		logger:    logger,
		collector: collector,
		stdout:    os.Stdout,
	}

	if err := app.cli().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "duply-swift: %v\n", err)
		logger.Sync()
		os.Exit(exitCode(err))
	}
}

// exitCode maps a failed command to the backend error code it carries
func exitCode(err error) int {
	var fatal *backend.FatalError
	if errors.As(err, &fatal) {
		return int(fatal.Code)
	}
	return int(backend.CodeGeneric)
}

func (app *application) cli() *cli.App {
	return &cli.App{
		Name:  "duply-swift",
		Usage: "Store and retrieve backup volumes in an OpenStack Swift container",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Backend URL, e.g. swift://container/prefix",
				EnvVars: []string{"DUPLY_TARGET"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "Upload a local file under a remote name",
				ArgsUsage: "<local-file> <remote-name>",
				Before:    app.openSession,
				Action:    app.put,
			},
			{
				Name:      "get",
				Usage:     "Download a remote file to a local path",
				ArgsUsage: "<remote-name> <local-file>",
				Before:    app.openSession,
				Action:    app.get,
			},
			{
				Name:   "list",
				Usage:  "List the remote file names",
				Before: app.openSession,
				Action: app.list,
			},
			{
				Name:      "delete",
				Usage:     "Delete a remote file",
				ArgsUsage: "<remote-name>",
				Before:    app.openSession,
				Action:    app.delete,
			},
			{
				Name:      "stat",
				Usage:     "Print the size of a remote file",
				ArgsUsage: "<remote-name>",
				Before:    app.openSession,
				Action:    app.stat,
			},
			{
				Name:  "watch",
				Usage: "Serve metrics and run the scheduled inventory until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "inventory",
						Usage: "Run the scheduled inventory (defaults to INVENTORY_ENABLED)",
						Value: app.config.Inventory.Enabled,
					},
					&cli.StringFlag{
						Name:  "schedule",
						Usage: "Cron schedule of the inventory",
						Value: app.config.Inventory.Schedule,
					},
				},
				Before: app.openSession,
				Action: app.watch,
			},
		},
	}
}
