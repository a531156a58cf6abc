package domain

import (
	"fmt"
	"strings"
)

// Category is one of the six ranked leaderboard dimensions
type Category string

const (
	CategoryAllTimeMoney  Category = "allTimeMoney"
	CategoryTotalTiers    Category = "totalTiers"
	CategoryMoneyPerClick Category = "moneyPerClick"
	CategoryOnlineTime    Category = "onlineTime"
	CategoryTotalClicks   Category = "totalClicks"
	CategoryTotalGems     Category = "totalGems"
)

// Categories lists every recognized category in display order.
var Categories = []Category{
	CategoryAllTimeMoney,
	CategoryTotalTiers,
	CategoryMoneyPerClick,
	CategoryOnlineTime,
	CategoryTotalClicks,
	CategoryTotalGems,
}

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAllTimeMoney, CategoryTotalTiers, CategoryMoneyPerClick,
		CategoryOnlineTime, CategoryTotalClicks, CategoryTotalGems:
		return true
	}
	return false
}

// ParseCategory validates a raw category key.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// chatAliases maps the short names used in chat commands onto categories.
var chatAliases = map[string]Category{
	"money":  CategoryAllTimeMoney,
	"gems":   CategoryTotalGems,
	"tier":   CategoryTotalTiers,
	"mpc":    CategoryMoneyPerClick,
	"time":   CategoryOnlineTime,
	"clicks": CategoryTotalClicks,
}

// ChatAliases returns the accepted chat aliases in display order.
func ChatAliases() []string {
	return []string{"money", "gems", "tier", "mpc", "time", "clicks"}
}

// ParseChatCategory resolves a chat alias (case-insensitive) or a full category key.
func ParseChatCategory(s string) (Category, error) {
	if c, ok := chatAliases[strings.ToLower(s)]; ok {
		return c, nil
	}
	return ParseCategory(s)
}

// LeaderboardEntry is the ranked projection stored under leaderboard/{id}
type LeaderboardEntry struct {
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	AllTimeMoney  float64   `json:"allTimeMoney"`
	TotalTiers    float64   `json:"totalTiers"`
	MoneyPerClick float64   `json:"moneyPerClick"`
	OnlineTime    float64   `json:"onlineTime"`
	TotalClicks   float64   `json:"totalClicks"`
	TotalGems     float64   `json:"totalGems"`
	TotalRebirths float64   `json:"totalRebirths,omitempty"`
	Timestamp     int64     `json:"timestamp,omitempty"`
	DevStats      *DevStats `json:"devStats,omitempty"`
}

// Value returns the entry's value for c. Missing fields decode as zero.
func (e LeaderboardEntry) Value(c Category) float64 {
	switch c {
	case CategoryAllTimeMoney:
		return e.AllTimeMoney
	case CategoryTotalTiers:
		return e.TotalTiers
	case CategoryMoneyPerClick:
		return e.MoneyPerClick
	case CategoryOnlineTime:
		return e.OnlineTime
	case CategoryTotalClicks:
		return e.TotalClicks
	case CategoryTotalGems:
		return e.TotalGems
	}
	return 0
}

// RankedEntry is a leaderboard entry with its 1-based display position.
type RankedEntry struct {
	Rank int `json:"rank"`
	LeaderboardEntry
}

// RankSummary maps each category to a 1-based rank, or nil when unranked.
type RankSummary map[Category]*int

// LeaderboardView is a sorted, capped leaderboard page.
type LeaderboardView struct {
	Category      Category      `json:"category"`
	IncludeBanned bool          `json:"include_banned"`
	TotalEntries  int           `json:"total_entries"`
	Entries       []RankedEntry `json:"entries"`
}
