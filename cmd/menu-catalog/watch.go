package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/menu-catalog/internal/async"
	"github.com/joseph-ayodele/menu-catalog/internal/ingest"
	"github.com/joseph-ayodele/menu-catalog/internal/pipeline"
	"github.com/joseph-ayodele/menu-catalog/internal/server"
)

func newWatchCmd(a *app) *cobra.Command {
	var paths pathFlags
	var healthAddr string
	var debounce, runTimeout time.Duration
	var noMerge bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process images as they land in the input folder",
		Long: `Watches the input folder and runs a batch whenever new images arrive.
Runs never overlap; images that arrive during a run are picked up by the
next one. While watching, a gRPC health service reports SERVING.`,
		Example: `  menu-catalog watch --health-addr 127.0.0.1:8090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			paths.apply(cfg)
			if cmd.Flags().Changed("health-addr") {
				cfg.Watch.HealthAddr = healthAddr
			}
			if cmd.Flags().Changed("debounce") {
				cfg.Watch.Debounce = debounce
			}
			if cmd.Flags().Changed("run-timeout") {
				cfg.Watch.RunTimeout = runTimeout
			}

			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cfg, !noMerge, a.logger)
			if err != nil {
				a.logger.Error("startup failed", "error", err)
				return err
			}
			defer rt.close(a.logger)

			var hs *server.HealthServer
			if cfg.Watch.HealthAddr != "" {
				hs, err = server.StartHealth(cfg.Watch.HealthAddr, a.logger)
				if err != nil {
					return err
				}
				defer hs.Stop()
			}

			var healthErrs <-chan error
			if hs != nil {
				healthErrs = hs.Errors()
			}

			out := cmd.OutOrStdout()
			var queue async.Queue = async.NewRunQueue(ctx, func(ctx context.Context, t async.Trigger) error {
				if !anyExists(t.Paths) {
					// only renames away from the folder, e.g. our own archiving
					return nil
				}
				job := pipeline.Start(ctx, rt.proc)
				printLines(out, job.Lines())
				res, err := job.Wait()
				if err != nil {
					return err
				}
				return batchError(res)
			}, a.logger, async.WithRunTimeout(cfg.Watch.RunTimeout))

			// Run once for whatever is already waiting, then follow events.
			events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Dir:         cfg.Paths.InputDir,
				InitialScan: true,
				Debounce:    cfg.Watch.Debounce,
				Logger:      a.logger,
			})
			if err != nil {
				queue.Shutdown(context.Background())
				return err
			}
			if hs != nil {
				hs.SetServing(true)
			}
			a.logger.Info("watch.started", "dir", cfg.Paths.InputDir, "debounce", cfg.Watch.Debounce.String())

			for {
				select {
				case <-ctx.Done():
					a.logger.Info("watch.stopping")
					if hs != nil {
						hs.SetServing(false)
					}
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					queue.Shutdown(shutdownCtx)
					cancel()
					return nil
				case p, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					_ = queue.Enqueue(ctx, async.Trigger{Reason: "fsnotify", Paths: []string{p}})
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Warn("watch.error", "error", err)
				case err, ok := <-healthErrs:
					if !ok {
						healthErrs = nil
						continue
					}
					// watching goes on without the health endpoint
					a.logger.Error("watch.health_failed", "error", err)
				}
			}
		},
	}

	addPathFlags(cmd, &paths)
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "gRPC health listen address, empty to disable (env WATCH_HEALTH_ADDR)")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a batch starts (env WATCH_DEBOUNCE)")
	cmd.Flags().DurationVar(&runTimeout, "run-timeout", 0, "Upper bound for one batch, 0 for none (env WATCH_RUN_TIMEOUT)")
	cmd.Flags().BoolVar(&noMerge, "no-merge", false, "Do not merge sheets after each batch")

	return cmd
}

func anyExists(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}
