package domain

import "time"

// TimeLayout is used for the string timestamps kept in links and announcements.
const TimeLayout = time.RFC3339

// AccountLink maps a chat identity to a game account, stored under discord_links/{chatId}
type AccountLink struct {
	ChatID     string `json:"-"`
	GameUserID string `json:"game_user_id"`
	LinkedAt   string `json:"linked_at"`
}

// LinkedAccount is an AccountLink joined with the linked save for listing.
type LinkedAccount struct {
	ChatID     string  `json:"chat_id"`
	GameUserID string  `json:"game_user_id"`
	Username   string  `json:"username"`
	LinkedAt   string  `json:"linked_at"`
	Money      float64 `json:"money"`
	Gems       int64   `json:"gems"`
}

// Announcement is a queued chat broadcast, stored under discord_announcements/{pushId}
type Announcement struct {
	ID        string `json:"-"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
	Sent      bool   `json:"sent"`
	SentAt    string `json:"sent_at,omitempty"`
}

// LinkResult is returned after a successful self-service link.
type LinkResult struct {
	GameUserID string        `json:"game_user_id"`
	Record     *PlayerRecord `json:"record"`
	RewardGems int64         `json:"reward_gems"`
}
