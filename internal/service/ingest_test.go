package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/clicker-admin/internal/directory"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/store"
	"github.com/clicker-admin/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gameSave(t *testing.T, id string, rec domain.PlayerRecord) domain.GameSave {
	t.Helper()
	save, err := domain.NewGameSave(id, rec, 0)
	require.NoError(t, err)
	return save
}

func TestIngestor_WritesSavesAndProjections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ing := NewIngestor(f.dir, f.notify, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, f.dir.SetBan(ctx, "banned", true))

	saves := []domain.GameSave{
		gameSave(t, "clean", domain.PlayerRecord{Username: "c", ClicksTotal: 40, Stats: domain.PlayerStats{AllTimeMoneyEarned: 900}}),
		gameSave(t, "banned", domain.PlayerRecord{Username: "b"}),
		gameSave(t, "cheat", domain.PlayerRecord{Username: "x", Stats: domain.PlayerStats{DevStats: &domain.DevStats{MoneyAdded: 1}}}),
		gameSave(t, "", domain.PlayerRecord{}),
	}

	err := ing.IngestBatch(ctx, saves)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	entry, err := f.dir.Entry(ctx, "clean")
	require.NoError(t, err)
	assert.Equal(t, 900.0, entry.AllTimeMoney)
	assert.Equal(t, 40.0, entry.TotalClicks)

	for _, id := range []string{"banned", "cheat"} {
		_, err := f.dir.Player(ctx, id)
		require.NoError(t, err, id)
		_, err = f.dir.Entry(ctx, id)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound, id)
	}

	require.Len(t, f.notify.ids, 1)
	assert.Equal(t, []string{"clean", "banned", "cheat"}, f.notify.ids[0])
}

func TestIngestor_ExplicitEntryWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ing := NewIngestor(f.dir, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	save := gameSave(t, "p1", domain.PlayerRecord{Username: "pat"})
	save.Leaderboard = &domain.LeaderboardEntry{Username: "pat", TotalGems: 77}
	err := ing.IngestBatch(ctx, []domain.GameSave{save})
	require.NoError(t, err)

	entry, err := f.dir.Entry(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 77.0, entry.TotalGems)
}

func TestIngestor_BanReadFailureFailsBatch(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn(storetest.OpSnapshot, "leaderboardBans")
	ing := NewIngestor(f.dir, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := ing.IngestBatch(context.Background(), []domain.GameSave{gameSave(t, "p", domain.PlayerRecord{})})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestIngestor_KeepsClientOnlyFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ing := NewIngestor(f.dir, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	save := domain.GameSave{
		UserID: "P1",
		GameData: json.RawMessage(`{"username":"p","money":5,"upgradeAmounts":[3,2,1],"runes":[1,0],` +
			`"rebirth_upgradeAmounts":[4],"stats":{"onlineTime":60,"eventsSeen":{"halloween":true}}}`),
	}
	require.NoError(t, ing.IngestBatch(ctx, []domain.GameSave{save}))

	raw, err := f.store.Get(ctx, store.Join(directory.CollectionGameData, "P1"))
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, []any{3.0, 2.0, 1.0}, stored["upgradeAmounts"])
	assert.Equal(t, []any{1.0, 0.0}, stored["runes"])
	assert.Equal(t, []any{4.0}, stored["rebirth_upgradeAmounts"])
	assert.Equal(t, map[string]any{"halloween": true}, stored["stats"].(map[string]any)["eventsSeen"])

	entry, err := f.dir.Entry(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, entry.OnlineTime)
}

func TestIngestor_RejectsMalformedGameData(t *testing.T) {
	f := newFixture(t)
	ing := NewIngestor(f.dir, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := ing.IngestBatch(context.Background(), []domain.GameSave{
		{UserID: "a", GameData: json.RawMessage(`[1,2]`)},
		{UserID: "b"},
		{UserID: "bad/id", GameData: json.RawMessage(`{}`)},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	docs, err := f.store.Snapshot(context.Background(), directory.CollectionGameData)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
