package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/directory"
	"github.com/clicker-admin/internal/domain"
)

// Target names a player either by linked chat identity or by username.
type Target struct {
	ChatID   string
	Username string
}

// BotService implements chat commands. Commands arrive parsed and with
// permissions already checked.
type BotService struct {
	dir         *directory.Directory
	admin       *AdminService
	links       *LinkCache
	config      *config.DiscordConfig
	boardConfig *config.LeaderboardConfig
	logger      *slog.Logger
}

// NewBotService creates a new bot service
func NewBotService(
	dir *directory.Directory,
	admin *AdminService,
	links *LinkCache,
	cfg *config.DiscordConfig,
	boardCfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *BotService {
	return &BotService{
		dir:         dir,
		admin:       admin,
		links:       links,
		config:      cfg,
		boardConfig: boardCfg,
		logger:      logger,
	}
}

// Link ties chatID to the account owning loginCode and credits the link reward.
func (s *BotService) Link(ctx context.Context, chatID, loginCode string) (*domain.LinkResult, error) {
	_, err := s.links.Get(ctx, chatID)
	switch {
	case err == nil:
		return nil, domain.ErrAlreadyLinked
	case !errors.Is(err, domain.ErrNotLinked):
		return nil, err
	}

	id, err := s.dir.FindByLoginCode(ctx, loginCode)
	if err != nil {
		return nil, err
	}
	if _, err := s.dir.Link(ctx, chatID, id); err != nil {
		return nil, err
	}
	s.links.Put(chatID, id)
	s.logger.Info("Chat account linked", "chat_id", chatID, "player_id", id)

	result := &domain.LinkResult{GameUserID: id}
	record, err := s.dir.Player(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		// No save yet, nothing to reward.
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	record.Gems += s.config.LinkReward
	if err := s.dir.WriteField(ctx, id, "gems", record.Gems); err != nil {
		s.logger.Warn("failed to credit link reward", "player_id", id, "error", err)
		record.Gems -= s.config.LinkReward
	} else {
		result.RewardGems = s.config.LinkReward
	}
	result.Record = record
	return result, nil
}

// Unlink removes the link of chatID.
func (s *BotService) Unlink(ctx context.Context, chatID string) error {
	if _, err := s.links.Get(ctx, chatID); err != nil {
		return err
	}
	if err := s.dir.Unlink(ctx, chatID); err != nil {
		return fmt.Errorf("removing link: %w", err)
	}
	s.links.Invalidate(chatID)
	return nil
}

// Me returns the linked player's detail.
func (s *BotService) Me(ctx context.Context, chatID string) (*domain.PlayerDetail, error) {
	id, err := s.links.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.admin.PlayerDetail(ctx, id)
}

// Leaderboard returns the public board for a chat alias. Banned players
// are hidden.
func (s *BotService) Leaderboard(ctx context.Context, alias string, limit int) (*domain.LeaderboardView, error) {
	cat, err := domain.ParseChatCategory(alias)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.boardConfig.MaxLimit {
		limit = s.boardConfig.BotLimit
	}
	return s.admin.PublicLeaderboard(ctx, string(cat), limit)
}

// Player looks a player up by username.
func (s *BotService) Player(ctx context.Context, username string) (*domain.PlayerDetail, error) {
	save, err := s.dir.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.admin.PlayerDetail(ctx, save.ID)
}

// GiveMoney adds money to a player's save.
func (s *BotService) GiveMoney(ctx context.Context, target Target, amount float64) (*domain.PlayerDetail, error) {
	return s.give(ctx, target, domain.BulkAddMoney, amount)
}

// GiveGems adds gems to a player's save.
func (s *BotService) GiveGems(ctx context.Context, target Target, amount float64) (*domain.PlayerDetail, error) {
	return s.give(ctx, target, domain.BulkAddGems, amount)
}

func (s *BotService) give(ctx context.Context, target Target, action domain.BulkAction, amount float64) (*domain.PlayerDetail, error) {
	id, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	result, err := s.admin.Bulk(ctx, domain.BulkRequest{PlayerIDs: []string{id}, Action: action, Amount: amount})
	if err != nil {
		return nil, err
	}
	if len(result.Failures) > 0 {
		return nil, result.Failures[0].Err
	}
	return s.admin.PlayerDetail(ctx, id)
}

// Ban hides a player from public leaderboards.
func (s *BotService) Ban(ctx context.Context, target Target) (string, error) {
	return s.setBan(ctx, target, true)
}

// Unban restores a player to public leaderboards.
func (s *BotService) Unban(ctx context.Context, target Target) (string, error) {
	return s.setBan(ctx, target, false)
}

func (s *BotService) setBan(ctx context.Context, target Target, banned bool) (string, error) {
	id, err := s.resolve(ctx, target)
	if err != nil {
		return "", err
	}
	if err := s.admin.SetBan(ctx, id, banned); err != nil {
		return "", err
	}
	return id, nil
}

// Announce queues a message for every announcement destination.
func (s *BotService) Announce(ctx context.Context, message string) (*domain.Announcement, error) {
	return s.admin.Announce(ctx, message)
}

// GlobalStats returns totals across every save.
func (s *BotService) GlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	return s.admin.Stats(ctx)
}

func (s *BotService) resolve(ctx context.Context, target Target) (string, error) {
	if target.ChatID != "" {
		return s.links.Get(ctx, target.ChatID)
	}
	if target.Username == "" {
		return "", fmt.Errorf("%w: no target player", domain.ErrInvalidRequest)
	}
	save, err := s.dir.FindByUsername(ctx, target.Username)
	if err != nil {
		return "", err
	}
	return save.ID, nil
}
