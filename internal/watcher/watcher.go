// ABOUTME: Directory watcher that ingests requirement files as they appear or change
// ABOUTME: Document IDs derive from the file path so an edited file replaces its previous version
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/harper/riskmem/internal/core"
	"github.com/harper/riskmem/internal/models"
)

// DefaultExtensions are the file types ingested when none are configured
var DefaultExtensions = []string{".txt", ".md"}

// Ingester is the part of the core the watcher drives
type Ingester interface {
	SubmitDocument(ctx context.Context, rawText string, meta models.DocumentMeta) (*core.IngestResult, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// Watcher ingests files from one directory
type Watcher struct {
	ingester   Ingester
	dir        string
	extensions []string
	debounce   time.Duration
	logger     *log.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// New creates a Watcher for dir
func New(ingester Ingester, dir string, extensions []string) *Watcher {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Watcher{
		ingester:   ingester,
		dir:        dir,
		extensions: extensions,
		debounce:   200 * time.Millisecond,
		logger:     log.WithPrefix("watch"),
		pending:    make(map[string]*time.Timer),
	}
}

// DocumentID returns the stable document ID for a file path
func DocumentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()
}

// Scan ingests every matching file already in the directory
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", w.dir, err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !w.matches(e.Name()) {
			continue
		}
		if err := w.ingest(ctx, filepath.Join(w.dir, e.Name())); err != nil {
			w.logger.Warn("ingest failed", "file", e.Name(), "err", err)
			continue
		}
		n++
	}
	return n, nil
}

// Run watches the directory until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	w.mu.Lock()
	w.stopped = false
	w.mu.Unlock()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching", "dir", w.dir, "extensions", strings.Join(w.extensions, ","))

	defer w.wg.Wait()
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.matches(event.Name) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.schedule(ctx, event.Name)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.remove(ctx, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// schedule ingests path once writes to it have settled
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()

		if ctx.Err() != nil {
			return
		}
		if err := w.ingest(ctx, path); err != nil {
			w.logger.Warn("ingest failed", "file", path, "err", err)
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := w.ingester.SubmitDocument(ctx, string(data), models.DocumentMeta{
		ID:     DocumentID(path),
		Title:  filepath.Base(path),
		Source: path,
	})
	if err != nil {
		return err
	}
	w.logger.Info("ingested", "file", filepath.Base(path), "document", res.Document.ID, "sections", len(res.Sections))
	return nil
}

func (w *Watcher) remove(ctx context.Context, path string) {
	w.mu.Lock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.ingester.DeleteDocument(ctx, DocumentID(path))
	if err != nil && !errors.Is(err, models.ErrDocumentNotFound) {
		w.logger.Warn("delete failed", "file", path, "err", err)
		return
	}
	w.logger.Info("removed", "file", filepath.Base(path))
}

func (w *Watcher) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
