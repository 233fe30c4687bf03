package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/invoice-triage/internal/core"
)

type WatchConfig struct {
	Dir        string        // intake directory, watched non-recursively
	Debounce   time.Duration // quiet period before a burst of events is emitted
	SkipHidden bool
	Logger     *slog.Logger
}

// StartWatcher emits paths created or written in cfg.Dir. Events are coalesced until
// cfg.Debounce passes without new ones, then emitted in lexical order. Both channels
// close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		logger.Error("watcher start failed: no directory provided")
		return nil, nil, errors.New("no directory provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		logger.Error("failed to watch directory", "dir", cfg.Dir, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		pending := map[string]struct{}{}
		var timer *time.Timer
		var fire <-chan time.Time

		flush := func() bool {
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			for _, p := range paths {
				select {
				case evCh <- p:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				// renames and removes report the old name; moved-in files arrive as Create
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
					continue
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					if !flush() {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(cfg.Debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// Watch runs one pass over the intake directory, then triages new arrivals until ctx
// is done. Paths that are gone or are not regular files by the time they are picked
// up are ignored. onResult, if set, sees every outcome.
func (i *Ingestor) Watch(ctx context.Context, cfg WatchConfig, onResult func(core.FileResult, error)) (DirStats, error) {
	if cfg.Logger == nil {
		cfg.Logger = i.logger
	}
	// subscribe before the initial pass so nothing arriving during it is missed
	events, errs, err := StartWatcher(ctx, cfg)
	if err != nil {
		return DirStats{}, err
	}

	results, stats, err := i.IngestDirectory(ctx, cfg.Dir, cfg.SkipHidden)
	if onResult != nil {
		for _, r := range results {
			var rerr error
			if r.Err != "" {
				rerr = errors.New(r.Err)
			}
			onResult(r, rerr)
		}
	}
	if err != nil {
		return stats, err
	}
	i.logger.Info("watching intake directory", "dir", cfg.Dir, "debounce", cfg.Debounce)

	for {
		select {
		case <-ctx.Done():
			return stats, nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			i.logger.Warn("watcher reported an error", "error", err)
		case path, ok := <-events:
			if !ok {
				return stats, nil
			}
			info, err := os.Lstat(path)
			if err != nil || !info.Mode().IsRegular() {
				i.logger.Debug("ignoring watch event", "path", path)
				continue
			}
			stats.Scanned++
			stats.Matched++
			r, err := i.IngestPath(ctx, path)
			stats.count(r.Decision)
			if err != nil {
				stats.Failed++
				i.logger.Error("failed to triage file", "file", r.FileName, "error", err)
			} else {
				stats.Succeeded++
			}
			if onResult != nil {
				onResult(r, err)
			}
		}
	}
}
