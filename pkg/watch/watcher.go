package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultQuiet = 2 * time.Second

// Change describes a modified file inside a mod folder.
type Change struct {
	Root   string
	Folder string
	Path   string
	Op     fsnotify.Op
}

// Options configures a Watcher.
type Options struct {
	// Quiet suppresses repeated notices for the same folder within this window.
	Quiet time.Duration

	// OnChange is called for every notice, after it is logged.
	OnChange func(Change)
}

// Watcher reports changes under the plugin roots. Changes are never applied;
// the host must be restarted to pick them up.
type Watcher struct {
	fs     *fsnotify.Watcher
	roots  []string
	opts   Options
	logger *logrus.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// New watches every directory under roots. Missing roots are skipped.
func New(roots []string, opts Options, logger *logrus.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Quiet <= 0 {
		opts.Quiet = defaultQuiet
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsw,
		opts:     opts,
		logger:   logger,
		lastSeen: make(map[string]time.Time),
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("invalid plugin root %s: %w", root, err)
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			logger.Debugf("Not watching missing plugin root %s", abs)
			continue
		}
		if err := w.addTree(abs); err != nil {
			fsw.Close()
			return nil, err
		}
		w.roots = append(w.roots, abs)
	}
	return w, nil
}

// addTree adds dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Plugin watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	change, ok := w.classify(event)
	if !ok {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.WithError(err).Warn("Failed to watch new directory")
			}
		}
	}

	if !w.shouldNotify(change.Folder, time.Now()) {
		return
	}
	w.logger.WithFields(logrus.Fields{
		"folder": change.Folder,
		"path":   change.Path,
		"op":     change.Op.String(),
	}).Warnf("Mod files changed in %s; restart required to apply.", change.Folder)
	if w.opts.OnChange != nil {
		w.opts.OnChange(change)
	}
}

// classify maps an event to the top-level mod folder it belongs to.
func (w *Watcher) classify(event fsnotify.Event) (Change, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, event.Name)
		if err != nil || rel == "." || !filepath.IsLocal(rel) {
			continue
		}
		parts := strings.Split(rel, string(filepath.Separator))
		for _, part := range parts {
			if hidden(part) {
				return Change{}, false
			}
		}
		return Change{Root: root, Folder: parts[0], Path: rel, Op: event.Op}, true
	}
	return Change{}, false
}

func (w *Watcher) shouldNotify(folder string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if last, ok := w.lastSeen[folder]; ok && now.Sub(last) < w.opts.Quiet {
		return false
	}
	w.lastSeen[folder] = now
	return true
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
