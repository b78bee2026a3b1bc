// Package dropwatch imports files dropped into a directory into a workspace.
package dropwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

const (
	// DefaultSettle is how long a path must stay quiet before it is read.
	DefaultSettle = 250 * time.Millisecond
	// DefaultMaxBytes caps the size of an imported file.
	DefaultMaxBytes = 1 << 20
)

// Config configures a Watcher.
type Config struct {
	Dir       string
	Workspace schema.WorkspaceID
	Settle    time.Duration
	MaxBytes  int64
}

// Watcher imports created or written files into a workspace. A file that was
// already imported is updated in place on later writes.
type Watcher struct {
	service core.Service
	cfg     Config

	mu       sync.Mutex
	pending  map[string]*time.Timer
	imported map[string]schema.FileID
	wg       sync.WaitGroup
}

// New validates cfg and constructs a Watcher.
func New(service core.Service, cfg Config) (*Watcher, error) {
	if service == nil {
		return nil, errors.New("dropwatch: service is required")
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("dropwatch: directory is required")
	}
	if err := schema.ValidateWorkspaceID(cfg.Workspace); err != nil {
		return nil, fmt.Errorf("dropwatch workspace: %w", err)
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Watcher{
		service:  service,
		cfg:      cfg,
		pending:  make(map[string]*time.Timer),
		imported: make(map[string]schema.FileID),
	}, nil
}

// Run watches the directory until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()
	if err := fsw.Add(w.cfg.Dir); err != nil {
		return err
	}
	ctx = logx.ContextWithWorkspace(ctx, w.cfg.Workspace)
	log := logx.WithWorkspace(ctx, w.cfg.Workspace).With("dir", w.cfg.Dir)
	log.Info("dropwatch started")
	defer func() {
		w.stopPending()
		w.wg.Wait()
		log.Info("dropwatch stopped")
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if skipName(filepath.Base(event.Name)) {
				continue
			}
			log.Trace("dropwatch event", "path", event.Name, "op", event.Op.String())
			w.schedule(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("dropwatch error", "err", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func skipName(name string) bool {
	return name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp")
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer := w.pending[path]; timer != nil {
		timer.Stop()
	}
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.cfg.Settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		current := w.pending[path] == timer
		if current {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if current {
			w.ingest(ctx, path)
		}
	})
	w.pending[path] = timer
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	log := pslog.Ctx(ctx).With("path", path)
	if ctx.Err() != nil {
		return
	}
	data, err := w.read(path)
	if err != nil {
		log.Warn("dropwatch read failed", "err", err)
		return
	}
	name := filepath.Base(path)

	w.mu.Lock()
	id, seen := w.imported[path]
	w.mu.Unlock()
	if seen {
		_, err := w.service.UpdateCode(ctx, schema.UpdateCodeRequest{
			WorkspaceID: w.cfg.Workspace,
			FileID:      id,
			Code:        strings.ToValidUTF8(string(data), "�"),
		})
		if err == nil {
			log.Info("dropwatch file updated", "file", int(id), "bytes", len(data))
			return
		}
		if !errors.Is(err, schema.ErrFileNotFound) {
			log.Warn("dropwatch update failed", "err", err)
			return
		}
	}
	resp, err := w.service.ImportFile(ctx, schema.ImportFileRequest{
		WorkspaceID: w.cfg.Workspace,
		Name:        name,
		Data:        data,
	})
	if err != nil {
		log.Warn("dropwatch import failed", "err", err)
		return
	}
	w.mu.Lock()
	w.imported[path] = resp.File.ID
	w.mu.Unlock()
	logx.WithFile(log, resp.File).Info("dropwatch file imported", "bytes", len(data))
}

func (w *Watcher) read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file")
	}
	if info.Size() > w.cfg.MaxBytes {
		return nil, fmt.Errorf("file is %d bytes, limit is %d", info.Size(), w.cfg.MaxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(io.LimitReader(f, w.cfg.MaxBytes))
}
