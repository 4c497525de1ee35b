package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enonic-cloud/docker-duply/internal/backend"
	"github.com/enonic-cloud/docker-duply/internal/config"
	"github.com/enonic-cloud/docker-duply/internal/inventory"
	"github.com/enonic-cloud/docker-duply/internal/metrics"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type application struct {
	config    *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	session   *backend.Session
	stdout    io.Writer
}

func (app *application) openSession(c *cli.Context) error {
	target := c.String("target")
	if target == "" {
		target = app.config.Target
	}
	if target == "" {
		return &backend.FatalError{
			Op:      backend.OpOpen,
			Code:    backend.CodeConfiguration,
			Message: "no target given, set --target or DUPLY_TARGET",
		}
	}

	session, err := backend.OpenSession(c.Context, app.config, target, app.logger, app.collector.Registry())
	if err != nil {
		return err
	}
	app.session = session
	return nil
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s expects %d argument(s): %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	return nil
}

func (app *application) put(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	return app.session.Put(c.Context, c.Args().Get(0), c.Args().Get(1))
}

func (app *application) get(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	return app.session.Get(c.Context, c.Args().Get(0), c.Args().Get(1))
}

func (app *application) list(c *cli.Context) error {
	names, err := app.session.List(c.Context)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(app.stdout, name)
	}
	return nil
}

func (app *application) delete(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return app.session.Delete(c.Context, c.Args().Get(0))
}

func (app *application) stat(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	name := c.Args().Get(0)

	info, err := app.session.Query(c.Context, name)
	if err != nil {
		return err
	}
	if info == nil {
		fmt.Fprintf(app.stdout, "%s\tnot found\n", name)
		return cli.Exit("", 1)
	}
	fmt.Fprintf(app.stdout, "%s\t%d\n", name, info.Size)
	return nil
}

func (app *application) watch(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	var scanner *inventory.Scanner
	if c.Bool("inventory") {
		cfg := *app.config
		cfg.Inventory.Schedule = c.String("schedule")
		if err := config.ParseCronSchedule(cfg.Inventory.Schedule); err != nil {
			return fmt.Errorf("invalid inventory schedule %q: %w", cfg.Inventory.Schedule, err)
		}

		var err error
		scanner, err = inventory.NewScanner(&cfg, app.logger, app.session, app.collector.Registry())
		if err != nil {
			return fmt.Errorf("failed to create inventory scanner: %w", err)
		}
		app.collector.AddHealthCheck("inventory", scanner.Check)
	}

	if err := app.collector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start metrics collector: %w", err)
	}

	if scanner != nil {
		// The first scan completes before the schedule starts; scans never overlap.
		if _, err := scanner.RunOnce(ctx); err != nil {
			app.logger.Error("Initial inventory scan failed", zap.Error(err))
		}
		if err := scanner.ConfigureSchedule(); err != nil {
			cancel()
			handleGracefulShutdown(ctx, app.logger, app.collector, nil)
			return err
		}
	}

	app.logger.Info("Watching backend",
		zap.Bool("inventory", scanner != nil),
		zap.String("metrics_address", app.collector.Addr()),
	)

	handleGracefulShutdown(ctx, app.logger, app.collector, scanner)
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

// handleGracefulShutdown blocks until a signal arrives or ctx ends, then
// stops the components concurrently.
func handleGracefulShutdown(ctx context.Context, logger *zap.Logger, collector *metrics.Collector, scanner *inventory.Scanner) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal, initiating graceful shutdown")
	case <-ctx.Done():
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()

	components := []stopper{collector}
	if scanner != nil {
		components = append(components, scanner)
	}

	// Stop components concurrently
	var g errgroup.Group
	for _, c := range components {
		c := c
		g.Go(func() error { return c.Stop(shutdownCtx) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("Component shutdown error", zap.Error(err))
		return
	}

	logger.Info("Graceful shutdown completed")
}
