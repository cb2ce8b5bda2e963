package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"studyrag/internal/domain"
)

// DefaultDebounce groups the burst of events an editor or copy produces.
const DefaultDebounce = 500 * time.Millisecond

// Handler is called once per settled document path.
type Handler func(ctx context.Context, path string) error

// Options tune a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
}

// Watcher reports new or changed course documents in one directory.
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger
}

func New(dir string, handler Handler, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{dir: dir, handler: handler, debounce: opts.Debounce, logger: opts.Logger}
}

// Run watches until ctx is cancelled. Handler errors are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("Watching directory", zap.String("dir", w.dir))

	pending := make(map[string]struct{})
	var flush <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if path, ok := relevant(ev); ok {
				pending[path] = struct{}{}
				flush = time.After(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		case <-flush:
			flush = nil
			w.dispatch(ctx, pending)
			pending = make(map[string]struct{})
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			continue
		}
		if err := w.handler(ctx, p); err != nil {
			w.logger.Warn("Document not registered", zap.String("path", p), zap.Error(err))
			continue
		}
		w.logger.Debug("Document picked up", zap.String("path", p))
	}
}

// relevant reports whether an event concerns a supported, visible document.
func relevant(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return "", false
	}
	if domain.KindFromPath(ev.Name) == domain.KindUnknown {
		return "", false
	}
	return ev.Name, true
}
