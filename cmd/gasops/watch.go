package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/config"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/pipeline"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/svcctx"
)

// settleDelay is how long a PDF must go without writes before it is
// processed.
const settleDelay = 500 * time.Millisecond

var (
	watchOpts     processFlags
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Process PDFs as they land in a directory",
	Long: `Process PDFs as they land in a directory.

Each new or rewritten *.pdf is processed once it has been quiet for 500ms.
The config file is watched too: provider settings are reloaded in place
and apply to documents that start afterwards.

Examples:
  gasops watch ./inbox
  gasops watch ./inbox --existing --out-dir ./records`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", args[0])
		}

		svc, err := watchOpts.services()
		if err != nil {
			return err
		}
		ctx := svcctx.WithServices(cmd.Context(), svc)
		return runWatch(ctx, args[0])
	},
}

func init() {
	watchOpts.register(watchCmd)
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "process PDFs already in the directory first")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, dir string) error {
	svc := svcctx.ServicesFrom(ctx)
	logger := svcctx.LoggerFrom(ctx)

	var current atomic.Pointer[pipeline.Processor]
	current.Store(svc.Processor)

	opts := svcctx.ProcessorOptions{OutputDir: watchOpts.outDir, Template: watchOpts.template}
	if watchOpts.homeOutput && opts.OutputDir == "" {
		opts.OutputDir = svc.Home.OutputsDir()
	}
	svc.Config.OnChange(func(cfg *config.Config) {
		if err := cfg.Validate(); err != nil {
			logger.Warn("ignoring invalid config change", "error", err)
			return
		}
		rc := cfg.ToRegistryConfig()
		rc.DocIntel.Logger = logger
		if err := svc.Registry.Reload(rc); err != nil {
			logger.Warn("failed to reload providers", "error", err)
			return
		}
		proc, err := svcctx.NewProcessor(cfg, svc.Registry, svc.Home, opts, logger)
		if err != nil {
			logger.Warn("failed to rebuild processor", "error", err)
			return
		}
		current.Store(proc)
	})
	if svc.Config.ConfigFileUsed() != "" {
		svc.Config.WatchConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var g errgroup.Group
	g.SetLimit(svc.Processor.MaxWorkers())
	process := func(path string) {
		g.Go(func() error {
			out, err := current.Load().ProcessFile(ctx, path)
			if err != nil {
				return nil // logged by the processor
			}
			logger.Info("record written", "document", path, "output", out.OutputPath)
			return nil
		})
	}

	if watchExisting {
		paths, err := pipeline.CollectPDFs([]string{dir})
		if err != nil {
			return err
		}
		for _, p := range paths {
			process(p)
		}
	}

	ready := make(chan string)
	deb := newDebouncer(settleDelay)
	defer deb.Stop()

	logger.Info("watching for PDFs", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping watch, waiting for documents in flight")
			_ = g.Wait()
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				_ = g.Wait()
				return nil
			}
			if !isPDFEvent(ev) {
				continue
			}
			path := ev.Name
			deb.Trigger(path, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			process(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				_ = g.Wait()
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

func isPDFEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	return strings.EqualFold(filepath.Ext(ev.Name), ".pdf")
}

// debouncer runs a function once per key after the key has stopped being
// triggered for delay.
type debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

// Trigger (re)starts the timer for key. Only the last fn given before the
// timer fires runs.
func (d *debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.timers[key] != t {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// Pending returns how many keys are waiting to fire.
func (d *debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every pending timer.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
