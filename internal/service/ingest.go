package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clicker-admin/internal/directory"
	"github.com/clicker-admin/internal/domain"
)

// Ingestor writes saves submitted by game clients
type Ingestor struct {
	dir    *directory.Directory
	notify Notifier
	logger *slog.Logger
}

// NewIngestor creates a new ingestor. notify may be nil.
func NewIngestor(dir *directory.Directory, notify Notifier, logger *slog.Logger) *Ingestor {
	return &Ingestor{dir: dir, notify: notify, logger: logger}
}

// IngestBatch stores each save's game document as sent. The leaderboard projection is withheld
// for banned players and for saves that used developer grants. One bad
// save does not stop the rest; their errors are joined.
func (i *Ingestor) IngestBatch(ctx context.Context, saves []domain.GameSave) error {
	banned, err := i.dir.BannedSet(ctx)
	if err != nil {
		return fmt.Errorf("reading bans: %w", err)
	}

	var errs []error
	written := make([]string, 0, len(saves))
	for _, save := range saves {
		if save.UserID == "" {
			errs = append(errs, fmt.Errorf("%w: save without user id", domain.ErrInvalidRequest))
			continue
		}
		rec, err := save.Record()
		if err != nil {
			errs = append(errs, fmt.Errorf("player %s: %w", save.UserID, err))
			continue
		}

		entry := save.Leaderboard
		if entry == nil {
			entry = domain.ProjectEntry(save.UserID, rec, save.Timestamp)
		}
		switch {
		case banned[save.UserID]:
			i.logger.Debug("withholding leaderboard entry of banned player", "player_id", save.UserID)
			entry = nil
		case entry.DevStats.Used() || rec.Stats.DevStats.Used():
			i.logger.Debug("withholding leaderboard entry with dev stats", "player_id", save.UserID)
			entry = nil
		}

		if err := i.dir.SaveProgress(ctx, save.UserID, save.GameData, entry); err != nil {
			i.logger.Error("failed to ingest save", "player_id", save.UserID, "error", err)
			errs = append(errs, fmt.Errorf("player %s: %w", save.UserID, err))
			continue
		}
		written = append(written, save.UserID)
	}

	if len(written) > 0 && i.notify != nil {
		i.notify.PlayersChanged("save", written...)
	}
	return errors.Join(errs...)
}
