package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clicker-admin/internal/directory"
	"github.com/clicker-admin/internal/domain"
)

// addFields maps each Add action to the save field it increments.
var addFields = map[domain.BulkAction]string{
	domain.BulkAddMoney:         "money",
	domain.BulkAddGems:          "gems",
	domain.BulkAddRebirthPoints: "rebirthPoints",
	domain.BulkAddClicks:        "clicksTotal",
}

// resetFields are zeroed by ResetAllStats.
var resetFields = []string{"money", "gems", "rebirthPoints", "clicksTotal"}

// BulkCoordinator applies one action to many players, best effort.
// A failure for one player never stops the others and never discards
// the successes already made.
type BulkCoordinator struct {
	dir    *directory.Directory
	logger *slog.Logger
}

// NewBulkCoordinator creates a new bulk coordinator
func NewBulkCoordinator(dir *directory.Directory, logger *slog.Logger) *BulkCoordinator {
	return &BulkCoordinator{dir: dir, logger: logger}
}

// Apply validates req and applies it to each distinct player in order.
// Only request validation is returned as an error; per-player failures
// are collected in the result.
func (c *BulkCoordinator) Apply(ctx context.Context, req domain.BulkRequest) (*domain.BulkResult, error) {
	action, err := domain.ParseBulkAction(string(req.Action))
	if err != nil {
		return nil, err
	}
	amount := req.Amount
	if action.TakesAmount() {
		if err := checkAmount(amount, action != domain.BulkAddMoney); err != nil {
			return nil, err
		}
	} else {
		amount = 0
	}

	ids := distinct(req.PlayerIDs)
	result := &domain.BulkResult{
		Action:    action,
		Requested: len(ids),
		Failures:  []domain.BulkFailure{},
	}
	for _, id := range ids {
		if err := c.applyOne(ctx, action, id, amount); err != nil {
			c.logger.Warn("Bulk action failed for player",
				"action", action,
				"player_id", id,
				"error", err,
			)
			result.Failures = append(result.Failures, domain.BulkFailure{PlayerID: id, Err: err})
			// Continue processing other players
			continue
		}
		result.Succeeded++
	}

	c.logger.Info("Bulk action applied",
		"action", action,
		"requested", result.Requested,
		"succeeded", result.Succeeded,
		"failed", len(result.Failures),
	)
	return result, nil
}

func (c *BulkCoordinator) applyOne(ctx context.Context, action domain.BulkAction, id string, amount float64) error {
	switch action {
	case domain.BulkAddMoney, domain.BulkAddGems, domain.BulkAddRebirthPoints, domain.BulkAddClicks:
		return c.add(ctx, id, addFields[action], amount, action != domain.BulkAddMoney)
	case domain.BulkResetMoney:
		if _, err := c.dir.Player(ctx, id); err != nil {
			return err
		}
		return c.dir.WriteField(ctx, id, "money", 0)
	case domain.BulkResetAllStats:
		if _, err := c.dir.Player(ctx, id); err != nil {
			return err
		}
		for _, f := range resetFields {
			if err := c.dir.WriteField(ctx, id, f, 0); err != nil {
				return fmt.Errorf("resetting %s: %w", f, err)
			}
		}
		return nil
	case domain.BulkBanAll:
		return c.dir.SetBan(ctx, id, true)
	case domain.BulkUnbanAll:
		return c.dir.SetBan(ctx, id, false)
	case domain.BulkDeleteAll:
		return c.dir.DeletePlayer(ctx, id).Err()
	}
	return fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
}

// add reads the current value and writes current+amount.
func (c *BulkCoordinator) add(ctx context.Context, id, field string, amount float64, integral bool) error {
	current, err := c.dir.Number(ctx, id, field)
	if err != nil {
		return fmt.Errorf("reading %s: %w", field, err)
	}
	var next any = current + amount
	if integral {
		next = int64(current) + int64(amount)
	}
	if err := c.dir.WriteField(ctx, id, field, next); err != nil {
		return fmt.Errorf("writing %s: %w", field, err)
	}
	return nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
