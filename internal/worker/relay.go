package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/domain"
)

// Destination is somewhere announcements are delivered to
type Destination interface {
	Name() string
	Dispatch(ctx context.Context, a domain.Announcement) error
}

// AnnouncementQueue is the persisted announcement log
type AnnouncementQueue interface {
	PendingAnnouncements(ctx context.Context) ([]domain.Announcement, error)
	MarkAnnouncementSent(ctx context.Context, id string) error
}

// AnnouncementRelay drains the announcement queue into every destination.
//
// Each item is offered to all destinations and then marked sent whether
// or not any delivery succeeded, so an item is attempted at most once.
// Errors never stop the loop; a failed poll only lengthens the next wait.
type AnnouncementRelay struct {
	queue        AnnouncementQueue
	destinations []Destination
	config       *config.RelayConfig
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	mu           sync.Mutex
	running      bool
}

// NewAnnouncementRelay creates a new relay
func NewAnnouncementRelay(
	queue AnnouncementQueue,
	destinations []Destination,
	cfg *config.RelayConfig,
	logger *slog.Logger,
) *AnnouncementRelay {
	return &AnnouncementRelay{
		queue:        queue,
		destinations: destinations,
		config:       cfg,
		logger:       logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start begins polling in the background
func (r *AnnouncementRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info("announcement relay started",
		"poll_interval", r.config.PollInterval,
		"destinations", len(r.destinations),
	)

	go r.run(ctx)
	return nil
}

// Stop stops polling and waits for the current poll to finish
func (r *AnnouncementRelay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.logger.Info("announcement relay stopped")
	return nil
}

func (r *AnnouncementRelay) run(ctx context.Context) {
	defer close(r.doneCh)

	for {
		_, err := r.Poll(ctx)
		if err != nil {
			r.logger.Error("announcement poll failed", "error", err, "retry_in", r.config.ErrorBackoff)
		}

		timer := time.NewTimer(r.nextDelay(err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *AnnouncementRelay) nextDelay(pollErr error) time.Duration {
	if pollErr != nil {
		return r.config.ErrorBackoff
	}
	return r.config.PollInterval
}

// Poll delivers every pending announcement once and returns how many
// were marked sent.
func (r *AnnouncementRelay) Poll(ctx context.Context) (int, error) {
	pending, err := r.queue.PendingAnnouncements(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading announcement queue: %w", err)
	}

	sent := 0
	var markErrs []error
	for _, a := range pending {
		delivered := 0
		for _, dest := range r.destinations {
			if err := dest.Dispatch(ctx, a); err != nil {
				r.logger.Warn("announcement delivery failed",
					"announcement_id", a.ID,
					"destination", dest.Name(),
					"error", err,
				)
				continue
			}
			delivered++
		}

		if err := r.queue.MarkAnnouncementSent(ctx, a.ID); err != nil {
			markErrs = append(markErrs, fmt.Errorf("announcement %s: %w", a.ID, err))
			continue
		}
		sent++
		r.logger.Info("announcement relayed",
			"announcement_id", a.ID,
			"delivered", delivered,
			"destinations", len(r.destinations),
		)
	}
	return sent, errors.Join(markErrs...)
}
