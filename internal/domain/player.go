package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DevStats tracks resources granted through the game's developer console.
type DevStats struct {
	MoneyAdded         float64 `json:"moneyAdded"`
	RebirthPointsAdded float64 `json:"rebirthPointsAdded"`
	GemsAdded          float64 `json:"gemsAdded"`
	ClicksAdded        float64 `json:"clicksAdded"`
}

// Used reports whether any developer grant was ever applied.
func (d *DevStats) Used() bool {
	if d == nil {
		return false
	}
	return d.MoneyAdded > 0 || d.RebirthPointsAdded > 0 || d.GemsAdded > 0 || d.ClicksAdded > 0
}

// PlayerStats is the nested stats sub-record of a save.
type PlayerStats struct {
	AllTimeMoneyEarned float64   `json:"allTimeMoneyEarned"`
	AllTimeGemsEarned  float64   `json:"allTimeGemsEarned"`
	TotalRebirths      int64     `json:"totalRebirths"`
	OnlineTime         float64   `json:"onlineTime"`
	DevStats           *DevStats `json:"devStats,omitempty"`
}

// PlayerRecord is the game save stored under gameData/{id}
type PlayerRecord struct {
	Username        string      `json:"username"`
	Money           float64     `json:"money"`
	Gems            int64       `json:"gems"`
	RebirthPoints   int64       `json:"rebirthPoints"`
	MoneyPerClick   float64     `json:"moneyPerClick"`
	ClicksTotal     int64       `json:"clicksTotal"`
	TotalTimePlayed float64     `json:"totalTimePlayed"`
	HighestTier     int64       `json:"highestTier"`
	TotalTiers      int64       `json:"totalTiers"`
	Achievements    []any       `json:"achievements,omitempty"`
	Stats           PlayerStats `json:"stats"`
}

// UserAccount is the account stub stored under users/{id}
type UserAccount struct {
	Username  string `json:"username"`
	LoginCode string `json:"loginCode,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// PlayerSummary pairs a player identifier with its account stub.
type PlayerSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PlayerDetail is everything the admin surface shows for one player.
type PlayerDetail struct {
	ID     string            `json:"id"`
	Record *PlayerRecord     `json:"record"`
	Entry  *LeaderboardEntry `json:"leaderboard,omitempty"`
	Banned bool              `json:"banned"`
	Ranks  RankSummary       `json:"ranks"`
}

// GlobalStats aggregates totals across every save.
type GlobalStats struct {
	TotalPlayers int     `json:"total_players"`
	TotalMoney   float64 `json:"total_money"`
	TotalClicks  int64   `json:"total_clicks"`
	TotalGems    int64   `json:"total_gems"`
	LinkedCount  int     `json:"linked_accounts"`
}

// GameSave is a save submitted by the game client. GameData is the full
// client document; it is stored as sent, including fields PlayerRecord
// does not model.
type GameSave struct {
	UserID      string            `json:"user_id"`
	GameData    json.RawMessage   `json:"game_data"`
	Leaderboard *LeaderboardEntry `json:"leaderboard,omitempty"`
	Timestamp   int64             `json:"timestamp,omitempty"`
}

// NewGameSave builds a save from any JSON-encodable game document.
func NewGameSave(id string, data any, timestamp int64) (GameSave, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return GameSave{}, fmt.Errorf("encoding game data: %w", err)
	}
	return GameSave{UserID: id, GameData: raw, Timestamp: timestamp}, nil
}

// HasData reports whether the save carries a game document.
func (s GameSave) HasData() bool {
	trimmed := bytes.TrimSpace(s.GameData)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Record decodes the fields of the game document the admin tools use.
func (s GameSave) Record() (*PlayerRecord, error) {
	if !s.HasData() {
		return nil, fmt.Errorf("%w: save without game data", ErrInvalidRequest)
	}
	var rec PlayerRecord
	if err := json.Unmarshal(s.GameData, &rec); err != nil {
		return nil, fmt.Errorf("%w: game data: %v", ErrInvalidRequest, err)
	}
	return &rec, nil
}

// ProjectEntry derives the leaderboard projection of a save.
func ProjectEntry(id string, rec *PlayerRecord, timestamp int64) *LeaderboardEntry {
	return &LeaderboardEntry{
		UserID:        id,
		Username:      rec.Username,
		AllTimeMoney:  rec.Stats.AllTimeMoneyEarned,
		TotalTiers:    float64(rec.TotalTiers),
		MoneyPerClick: rec.MoneyPerClick,
		OnlineTime:    rec.Stats.OnlineTime,
		TotalClicks:   float64(rec.ClicksTotal),
		TotalGems:     rec.Stats.AllTimeGemsEarned,
		TotalRebirths: float64(rec.Stats.TotalRebirths),
		Timestamp:     timestamp,
		DevStats:      rec.Stats.DevStats,
	}
}
