package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/directory"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/ranking"
)

// editableFields maps the save fields an operator may overwrite to
// whether they hold integers.
var editableFields = map[string]bool{
	"money":                    false,
	"gems":                     true,
	"rebirthPoints":            true,
	"clicksTotal":              true,
	"moneyPerClick":            false,
	"stats/allTimeMoneyEarned": false,
	"stats/allTimeGemsEarned":  false,
	"stats/totalRebirths":      true,
	"stats/onlineTime":         false,
}

// AdminService provides the operator-facing player operations
type AdminService struct {
	dir    *directory.Directory
	bulk   *BulkCoordinator
	audit  AuditLog
	notify Notifier
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewAdminService creates a new admin service. audit and notify may be nil.
func NewAdminService(
	dir *directory.Directory,
	bulk *BulkCoordinator,
	audit AuditLog,
	notify Notifier,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		dir:    dir,
		bulk:   bulk,
		audit:  audit,
		notify: notify,
		config: cfg,
		logger: logger,
	}
}

// Leaderboard returns the sorted board for category capped to limit entries
func (s *AdminService) Leaderboard(ctx context.Context, category string, includeBanned bool, limit int) (*domain.LeaderboardView, error) {
	return s.leaderboard(ctx, category, includeBanned, false, limit)
}

// PublicLeaderboard is the board shown to players: banned players and
// entries that used developer grants are hidden.
func (s *AdminService) PublicLeaderboard(ctx context.Context, category string, limit int) (*domain.LeaderboardView, error) {
	return s.leaderboard(ctx, category, false, true, limit)
}

func (s *AdminService) leaderboard(ctx context.Context, category string, includeBanned, hideDev bool, limit int) (*domain.LeaderboardView, error) {
	cat, err := domain.ParseCategory(category)
	if err != nil {
		return nil, err
	}

	// Validate limit
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	entries, err := s.dir.LeaderboardSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if hideDev {
		entries = ranking.WithoutDevStats(entries)
	}
	var banned map[string]bool
	if !includeBanned {
		if banned, err = s.dir.BannedSet(ctx); err != nil {
			return nil, err
		}
	}

	sorted, err := ranking.SortLeaderboard(entries, cat, includeBanned, banned)
	if err != nil {
		return nil, err
	}

	return &domain.LeaderboardView{
		Category:      cat,
		IncludeBanned: includeBanned,
		TotalEntries:  len(sorted),
		Entries:       ranking.Top(sorted, limit),
	}, nil
}

// Players lists every registered player
func (s *AdminService) Players(ctx context.Context) ([]domain.PlayerSummary, error) {
	return s.dir.Players(ctx)
}

// PlayerDetail returns a save with its ban flag and ranks in every category
func (s *AdminService) PlayerDetail(ctx context.Context, id string) (*domain.PlayerDetail, error) {
	record, err := s.dir.Player(ctx, id)
	if err != nil {
		return nil, err
	}
	banned, err := s.dir.IsBanned(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.dir.LeaderboardSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	ranks, err := ranking.RanksAcrossCategories(id, entries, domain.Categories)
	if err != nil {
		return nil, err
	}

	detail := &domain.PlayerDetail{
		ID:     id,
		Record: record,
		Banned: banned,
		Ranks:  ranks,
	}
	for i := range entries {
		if entries[i].UserID == id {
			detail.Entry = &entries[i]
			break
		}
	}
	return detail, nil
}

// EditField overwrites one editable numeric field of a save
func (s *AdminService) EditField(ctx context.Context, id, field string, value float64) error {
	integral, ok := editableFields[field]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidField, field)
	}
	if err := checkAmount(value, integral); err != nil {
		return err
	}
	if _, err := s.dir.Player(ctx, id); err != nil {
		return err
	}

	var stored any = value
	if integral {
		stored = int64(value)
	}
	err := s.dir.WriteField(ctx, id, field, stored)
	s.record(ctx, "edit_field", id, map[string]any{"field": field, "value": value}, err)
	if err != nil {
		return fmt.Errorf("writing %s: %w", field, err)
	}
	s.changed("edit_field", id)
	return nil
}

// RenamePlayer writes a new username to every location that stores it
func (s *AdminService) RenamePlayer(ctx context.Context, id, username string) (domain.Outcomes, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidRequest)
	}
	if _, err := s.dir.Player(ctx, id); err != nil {
		return nil, err
	}

	outcomes := s.dir.SetUsername(ctx, id, username)
	s.record(ctx, "rename", id, map[string]any{"username": username, "steps": outcomes}, outcomes.Err())
	s.changed("rename", id)
	return outcomes, nil
}

// SetBan bans or unbans a player
func (s *AdminService) SetBan(ctx context.Context, id string, banned bool) error {
	action := "unban"
	if banned {
		action = "ban"
	}
	err := s.dir.SetBan(ctx, id, banned)
	s.record(ctx, action, id, nil, err)
	if err != nil {
		return fmt.Errorf("updating ban flag: %w", err)
	}
	s.changed(action, id)
	return nil
}

// DeletePlayer removes a player from every collection, attempting every step
func (s *AdminService) DeletePlayer(ctx context.Context, id string) domain.Outcomes {
	outcomes := s.dir.DeletePlayer(ctx, id)
	if err := outcomes.Err(); err != nil {
		s.logger.Warn("Player deletion incomplete", "player_id", id, "error", err)
	}
	s.record(ctx, "delete", id, map[string]any{"steps": outcomes}, outcomes.Err())
	s.changed("delete", id)
	return outcomes
}

// Bulk applies one action to many players
func (s *AdminService) Bulk(ctx context.Context, req domain.BulkRequest) (*domain.BulkResult, error) {
	result, err := s.bulk.Apply(ctx, req)
	if err != nil {
		return nil, err
	}

	// One audit event per player
	failures := make(map[string]error, len(result.Failures))
	for _, f := range result.Failures {
		failures[f.PlayerID] = f.Err
	}
	action := "bulk_" + string(result.Action)
	for _, id := range distinct(req.PlayerIDs) {
		detail := map[string]any{"batch_size": result.Requested}
		if result.Action.TakesAmount() {
			detail["amount"] = req.Amount
		}
		s.record(ctx, action, id, detail, failures[id])
	}
	s.changed(action, req.PlayerIDs...)
	return result, nil
}

// Announce queues a message for the announcement relay
func (s *AdminService) Announce(ctx context.Context, message string) (*domain.Announcement, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}
	a, err := s.dir.QueueAnnouncement(ctx, message)
	s.record(ctx, "announce", "", map[string]any{"message": message}, err)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Links lists linked chat accounts joined with their saves
func (s *AdminService) Links(ctx context.Context) ([]domain.LinkedAccount, error) {
	links, err := s.dir.Links(ctx)
	if err != nil {
		return nil, err
	}
	saves, err := s.dir.Saves(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.PlayerRecord, len(saves))
	for _, save := range saves {
		byID[save.ID] = save.Record
	}

	accounts := make([]domain.LinkedAccount, 0, len(links))
	for _, l := range links {
		acct := domain.LinkedAccount{
			ChatID:     l.ChatID,
			GameUserID: l.GameUserID,
			LinkedAt:   l.LinkedAt,
		}
		if rec, ok := byID[l.GameUserID]; ok {
			acct.Username = rec.Username
			acct.Money = rec.Money
			acct.Gems = rec.Gems
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// Stats aggregates totals across every save
func (s *AdminService) Stats(ctx context.Context) (*domain.GlobalStats, error) {
	saves, err := s.dir.Saves(ctx)
	if err != nil {
		return nil, err
	}
	links, err := s.dir.Links(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.GlobalStats{
		TotalPlayers: len(saves),
		LinkedCount:  len(links),
	}
	for _, save := range saves {
		stats.TotalMoney += save.Record.Money
		stats.TotalClicks += save.Record.ClicksTotal
		stats.TotalGems += save.Record.Gems
	}
	return stats, nil
}

// AuditTrail returns recent operator actions, newest first
func (s *AdminService) AuditTrail(ctx context.Context, playerID string, limit int) ([]domain.MutationEvent, error) {
	if s.audit == nil {
		return []domain.MutationEvent{}, nil
	}
	if limit <= 0 || limit > s.config.MaxLimit {
		limit = s.config.DefaultLimit
	}
	return s.audit.ListMutations(ctx, playerID, limit)
}

func (s *AdminService) record(ctx context.Context, action, playerID string, detail map[string]any, err error) {
	if s.audit == nil {
		return
	}
	if detail == nil {
		detail = map[string]any{}
	}
	if err != nil {
		detail["error"] = err.Error()
	}
	event := domain.MutationEvent{
		Actor:     ActorFrom(ctx),
		Action:    action,
		PlayerID:  playerID,
		Detail:    detail,
		Failed:    err != nil,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.RecordMutation(ctx, event); err != nil {
		s.logger.Warn("failed to record mutation", "action", action, "player_id", playerID, "error", err)
		// Don't fail the operation if auditing fails
	}
}

func (s *AdminService) changed(action string, ids ...string) {
	if s.notify != nil {
		s.notify.PlayersChanged(action, ids...)
	}
}

func checkAmount(v float64, integral bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAmount, v)
	}
	if integral && v != math.Trunc(v) {
		return fmt.Errorf("%w: %v is not a whole number", domain.ErrInvalidAmount, v)
	}
	return nil
}
