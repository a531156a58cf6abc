package directory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/store"
	"github.com/clicker-admin/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) (*Directory, *storetest.Faulty) {
	t.Helper()
	faulty := storetest.NewFaulty(store.NewMemoryStore())
	d := New(faulty, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return d, faulty
}

func seedPlayer(t *testing.T, s store.Store, id, username string, money float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, store.Join(CollectionUsers, id), domain.UserAccount{Username: username, LoginCode: "code-" + id}))
	require.NoError(t, s.Set(ctx, store.Join(CollectionGameData, id), domain.PlayerRecord{Username: username, Money: money}))
	require.NoError(t, s.Set(ctx, store.Join(CollectionLeaderboard, id), domain.LeaderboardEntry{Username: username, AllTimeMoney: money}))
	require.NoError(t, s.Set(ctx, store.Join(CollectionUsernames, id), map[string]any{"username": username}))
}

func TestDirectory_LeaderboardSnapshotUsesKeys(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()
	seedPlayer(t, s, "b", "bob", 20)
	seedPlayer(t, s, "a", "alice", 10)

	entries, err := d.LeaderboardSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].UserID)
	assert.Equal(t, "b", entries[1].UserID)
}

func TestDirectory_BannedSetOnlyLiteralTrue(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "leaderboardBans/yes", true))
	require.NoError(t, s.Set(ctx, "leaderboardBans/no", false))
	require.NoError(t, s.Set(ctx, "leaderboardBans/text", "true"))

	banned, err := d.BannedSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"yes": true}, banned)

	ok, err := d.IsBanned(ctx, "text")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectory_SetBan(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()

	require.NoError(t, d.SetBan(ctx, "p1", true))
	banned, err := d.IsBanned(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, d.SetBan(ctx, "p1", false))
	_, err = s.Get(ctx, "leaderboardBans/p1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestDirectory_Number(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()
	seedPlayer(t, s, "p1", "pat", 250)

	money, err := d.Number(ctx, "p1", "money")
	require.NoError(t, err)
	assert.Equal(t, 250.0, money)

	earned, err := d.Number(ctx, "p1", "stats/allTimeMoneyEarned")
	require.NoError(t, err)
	assert.Zero(t, earned)

	_, err = d.Number(ctx, "ghost", "money")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = d.Number(ctx, "p1", "username")
	assert.ErrorIs(t, err, domain.ErrInvalidField)
}

func TestDirectory_DeletePlayerClearsEveryLocation(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()
	seedPlayer(t, s, "p1", "pat", 5)
	require.NoError(t, d.SetBan(ctx, "p1", true))

	outcomes := d.DeletePlayer(ctx, "p1")
	require.Len(t, outcomes, 5)
	assert.NoError(t, outcomes.Err())
	assert.Equal(t, "users/p1", outcomes[0].Path)
	assert.Equal(t, "leaderboardBans/p1", outcomes[4].Path)

	for _, c := range playerCollections {
		_, err := s.Get(ctx, store.Join(c, "p1"))
		assert.ErrorIs(t, err, domain.ErrRecordNotFound, c)
	}
}

func TestDirectory_DeletePlayerContinuesPastFailures(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()
	seedPlayer(t, s, "p1", "pat", 5)
	s.FailOn(storetest.OpDelete, "gameData/")

	outcomes := d.DeletePlayer(ctx, "p1")
	require.Len(t, outcomes, 5)
	assert.True(t, outcomes[0].OK())
	assert.False(t, outcomes[1].OK())
	assert.ErrorIs(t, outcomes[1].Err, domain.ErrStoreUnavailable)
	assert.True(t, outcomes[2].OK())
	assert.ErrorIs(t, outcomes.Err(), domain.ErrStoreUnavailable)

	_, err := s.Get(ctx, "leaderboard/p1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestDirectory_SetUsernameWritesThreePaths(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()
	seedPlayer(t, s, "p1", "old", 0)
	s.FailOn(storetest.OpSet, "users/")

	outcomes := d.SetUsername(ctx, "p1", "fresh")
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].OK())
	assert.False(t, outcomes[1].OK())
	assert.True(t, outcomes[2].OK())

	rec, err := d.Player(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", rec.Username)

	raw, err := s.Get(ctx, "usernames/p1/timestamp")
	require.NoError(t, err)
	assert.JSONEq(t, "1709294400000", string(raw))
}

func TestDirectory_FindByUsernameAndLoginCode(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()
	seedPlayer(t, s, "p1", "Pat", 1)

	save, err := d.FindByUsername(ctx, "pat")
	require.NoError(t, err)
	assert.Equal(t, "p1", save.ID)

	_, err = d.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	id, err := d.FindByLoginCode(ctx, "code-p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	_, err = d.FindByLoginCode(ctx, "CODE-P1")
	assert.ErrorIs(t, err, domain.ErrInvalidLoginCode)
	_, err = d.FindByLoginCode(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidLoginCode)
}

func TestDirectory_Links(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.LinkFor(ctx, "chat1")
	assert.ErrorIs(t, err, domain.ErrNotLinked)

	link, err := d.Link(ctx, "chat1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", link.LinkedAt)

	got, err := d.LinkFor(ctx, "chat1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.GameUserID)
	assert.Equal(t, "chat1", got.ChatID)

	links, err := d.Links(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	require.NoError(t, d.Unlink(ctx, "chat1"))
	_, err = d.LinkFor(ctx, "chat1")
	assert.ErrorIs(t, err, domain.ErrNotLinked)
}

func TestDirectory_AnnouncementQueue(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	first, err := d.QueueAnnouncement(ctx, "first")
	require.NoError(t, err)
	_, err = d.QueueAnnouncement(ctx, "second")
	require.NoError(t, err)

	pending, err := d.PendingAnnouncements(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Message)

	require.NoError(t, d.MarkAnnouncementSent(ctx, first.ID))

	pending, err = d.PendingAnnouncements(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "second", pending[0].Message)
}

func TestDirectory_SaveProgress(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	rec := json.RawMessage(`{"username":"pat","money":42,"runes":[1,0]}`)
	require.NoError(t, d.SaveProgress(ctx, "p1", rec, nil))
	_, err := d.Entry(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	entry := &domain.LeaderboardEntry{Username: "pat", AllTimeMoney: 42}
	require.NoError(t, d.SaveProgress(ctx, "p1", rec, entry))
	got, err := d.Entry(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.AllTimeMoney)
	assert.Equal(t, "p1", got.UserID)

	stored, err := d.Player(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, stored.Money)
}

func TestDirectory_RejectsIDsThatAddressFields(t *testing.T) {
	d, s := newTestDirectory(t)
	ctx := context.Background()
	seedPlayer(t, s, "victim", "vic", 10)

	for _, id := range []string{"", "victim/username", "victim/stats/onlineTime"} {
		outcomes := d.DeletePlayer(ctx, id)
		require.Len(t, outcomes, 5, id)
		for _, o := range outcomes {
			assert.ErrorIs(t, o.Err, domain.ErrInvalidRequest, o.Path)
		}
		assert.ErrorIs(t, d.SetBan(ctx, id, true), domain.ErrInvalidRequest, id)
		assert.ErrorIs(t, d.WriteField(ctx, id, "money", 0), domain.ErrInvalidRequest, id)
		assert.ErrorIs(t, d.SetUsername(ctx, id, "x").Err(), domain.ErrInvalidRequest, id)
		_, err := d.Player(ctx, id)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest, id)
	}

	acct, err := d.Account(ctx, "victim")
	require.NoError(t, err)
	assert.Equal(t, "vic", acct.Username)
	rec, err := d.Player(ctx, "victim")
	require.NoError(t, err)
	assert.Equal(t, "vic", rec.Username)
	assert.Equal(t, 10.0, rec.Money)
}

func TestDirectory_SnapshotFailureIsUnavailable(t *testing.T) {
	d, s := newTestDirectory(t)
	s.FailOn(storetest.OpSnapshot, CollectionLeaderboard)

	_, err := d.LeaderboardSnapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
