// Package ranking turns leaderboard snapshots into ordered boards and
// per-player ranks. It performs no I/O and keeps no state.
package ranking

import (
	"sort"

	"github.com/clicker-admin/internal/domain"
)

// SortLeaderboard orders entries by category, highest first.
//
// Entries whose UserID is in banned are dropped unless includeBanned is set.
// Equal values keep their input order. The input slice is not modified.
func SortLeaderboard(entries []domain.LeaderboardEntry, category domain.Category, includeBanned bool, banned map[string]bool) ([]domain.LeaderboardEntry, error) {
	if !category.Valid() {
		return nil, invalid(category)
	}

	sorted := make([]domain.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if !includeBanned && banned[e.UserID] {
			continue
		}
		sorted = append(sorted, e)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value(category) > sorted[j].Value(category)
	})
	return sorted, nil
}

// WithoutDevStats drops entries that carry developer-console grants. The
// input slice is not modified.
func WithoutDevStats(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	kept := make([]domain.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if e.DevStats.Used() {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// RankOf returns the 1-based position of playerID in the unfiltered board
// for category. Bans are ignored: a banned player keeps a private rank
// even though the displayed board hides them. ok is false when the player
// has no entry.
func RankOf(playerID string, entries []domain.LeaderboardEntry, category domain.Category) (rank int, ok bool, err error) {
	sorted, err := SortLeaderboard(entries, category, true, nil)
	if err != nil {
		return 0, false, err
	}
	for i, e := range sorted {
		if e.UserID == playerID {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// RanksAcrossCategories applies RankOf once per category. Unranked
// categories map to nil. Any invalid category fails the whole call.
func RanksAcrossCategories(playerID string, entries []domain.LeaderboardEntry, categories []domain.Category) (domain.RankSummary, error) {
	ranks := make(domain.RankSummary, len(categories))
	for _, c := range categories {
		rank, ok, err := RankOf(playerID, entries, c)
		if err != nil {
			return nil, err
		}
		if ok {
			r := rank
			ranks[c] = &r
		} else {
			ranks[c] = nil
		}
	}
	return ranks, nil
}

// Top numbers the first limit entries of an already sorted board.
// A non-positive limit keeps every entry.
func Top(sorted []domain.LeaderboardEntry, limit int) []domain.RankedEntry {
	if limit <= 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	ranked := make([]domain.RankedEntry, limit)
	for i := 0; i < limit; i++ {
		ranked[i] = domain.RankedEntry{Rank: i + 1, LeaderboardEntry: sorted[i]}
	}
	return ranked
}

func invalid(c domain.Category) error {
	_, err := domain.ParseCategory(string(c))
	return err
}
