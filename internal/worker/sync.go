package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/store"
)

// Primary is the live document store being mirrored
type Primary interface {
	Snapshot(ctx context.Context, collection string) ([]store.Document, error)
	Count(ctx context.Context, collection string) (int64, error)
	Restore(ctx context.Context, collection string, docs []store.Document) error
}

// Mirror is durable storage holding a copy of each collection
type Mirror interface {
	ReplaceCollection(ctx context.Context, collection string, docs []store.Document) error
	ReadCollection(ctx context.Context, collection string) ([]store.Document, error)
}

// SyncWorker periodically copies the primary store's collections into the
// mirror, and can restore them on startup
type SyncWorker struct {
	primary     Primary
	mirror      Mirror
	collections []string
	config      *config.SyncConfig
	logger      *slog.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
	mu          sync.Mutex
	running     bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	primary Primary,
	mirror Mirror,
	collections []string,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		primary:     primary,
		mirror:      mirror,
		collections: collections,
		config:      cfg,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process and waits for a final cycle
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			// Flush once more so shutdown does not lose the last interval.
			w.syncAll(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			w.syncAll(ctx)
		}
	}
}

// syncAll mirrors every collection
func (w *SyncWorker) syncAll(ctx context.Context) {
	w.logger.Info("starting sync cycle")
	startTime := time.Now()

	syncedCount := 0
	errorCount := 0

	for _, collection := range w.collections {
		if err := w.SyncToMirror(ctx, collection); err != nil {
			w.logger.Error("failed to sync collection",
				"collection", collection,
				"error", err,
			)
			errorCount++
		} else {
			syncedCount++
		}
	}

	duration := time.Since(startTime)
	w.logger.Info("sync cycle completed",
		"duration", duration,
		"synced", syncedCount,
		"errors", errorCount,
	)
}

// SyncToMirror replaces the mirrored copy of one collection. An empty
// collection empties the mirror too.
func (w *SyncWorker) SyncToMirror(ctx context.Context, collection string) error {
	docs, err := w.primary.Snapshot(ctx, collection)
	if err != nil {
		return err
	}
	if err := w.mirror.ReplaceCollection(ctx, collection, docs); err != nil {
		return err
	}

	w.logger.Debug("synced collection to mirror",
		"collection", collection,
		"documents", len(docs),
	)
	return nil
}

// RestoreFromMirror copies one collection back into the primary store if
// the primary holds nothing for it. It reports whether anything was restored.
func (w *SyncWorker) RestoreFromMirror(ctx context.Context, collection string) (bool, error) {
	count, err := w.primary.Count(ctx, collection)
	if err != nil {
		return false, err
	}
	if count > 0 {
		w.logger.Debug("collection already populated, skipping restore", "collection", collection, "documents", count)
		return false, nil
	}

	docs, err := w.mirror.ReadCollection(ctx, collection)
	if err != nil {
		return false, err
	}
	if len(docs) == 0 {
		return false, nil
	}
	if err := w.primary.Restore(ctx, collection, docs); err != nil {
		return false, err
	}

	w.logger.Info("restored collection from mirror",
		"collection", collection,
		"documents", len(docs),
	)
	return true, nil
}

// RestoreAll restores every empty collection. Failures are logged and the
// remaining collections are still attempted.
func (w *SyncWorker) RestoreAll(ctx context.Context) int {
	restored := 0
	for _, collection := range w.collections {
		ok, err := w.RestoreFromMirror(ctx, collection)
		if err != nil {
			w.logger.Error("failed to restore collection",
				"collection", collection,
				"error", err,
			)
			// Continue with other collections
			continue
		}
		if ok {
			restored++
		}
	}
	return restored
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle (useful for manual triggers)
func (w *SyncWorker) RunOnce(ctx context.Context) {
	w.syncAll(ctx)
}
