// Package directory gives typed access to the player collections kept in
// the document store.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/store"
)

// Collection names as persisted by the game client and the bot
const (
	CollectionUsers         = "users"
	CollectionGameData      = "gameData"
	CollectionLeaderboard   = "leaderboard"
	CollectionBans          = "leaderboardBans"
	CollectionUsernames     = "usernames"
	CollectionLinks         = "discord_links"
	CollectionAnnouncements = "discord_announcements"
)

// Collections lists every collection the directory owns.
var Collections = []string{
	CollectionUsers,
	CollectionGameData,
	CollectionLeaderboard,
	CollectionBans,
	CollectionUsernames,
	CollectionLinks,
	CollectionAnnouncements,
}

// playerCollections are cleared, in order, when a player is deleted.
var playerCollections = []string{
	CollectionUsers,
	CollectionGameData,
	CollectionLeaderboard,
	CollectionUsernames,
	CollectionBans,
}

// Save is one gameData document with its player identifier
type Save struct {
	ID     string
	Record *domain.PlayerRecord
}

// Directory reads and writes player state through a store.Store
type Directory struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new directory
func New(s store.Store, logger *slog.Logger) *Directory {
	return &Directory{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

// LeaderboardSnapshot returns every leaderboard entry in key order.
// Entries that fail to decode are skipped.
func (d *Directory) LeaderboardSnapshot(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	docs, err := d.store.Snapshot(ctx, CollectionLeaderboard)
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(docs))
	for _, doc := range docs {
		var e domain.LeaderboardEntry
		if err := store.Decode(doc.Value, &e); err != nil {
			d.logger.Warn("Skipping malformed leaderboard entry", "player_id", doc.Key, "error", err)
			continue
		}
		// The key is authoritative; older clients omitted userId.
		e.UserID = doc.Key
		entries = append(entries, e)
	}
	return entries, nil
}

// BannedSet returns the identifiers whose ban flag is the literal true.
func (d *Directory) BannedSet(ctx context.Context) (map[string]bool, error) {
	docs, err := d.store.Snapshot(ctx, CollectionBans)
	if err != nil {
		return nil, fmt.Errorf("reading bans: %w", err)
	}

	banned := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if isTrue(doc.Value) {
			banned[doc.Key] = true
		}
	}
	return banned, nil
}

// IsBanned reports whether id carries a ban flag.
func (d *Directory) IsBanned(ctx context.Context, id string) (bool, error) {
	if err := validID(id); err != nil {
		return false, err
	}
	raw, err := d.store.Get(ctx, store.Join(CollectionBans, id))
	if errors.Is(err, domain.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading ban flag: %w", err)
	}
	return isTrue(raw), nil
}

// SetBan sets the ban flag. Unbanning removes the flag entirely.
func (d *Directory) SetBan(ctx context.Context, id string, banned bool) error {
	if err := validID(id); err != nil {
		return err
	}
	path := store.Join(CollectionBans, id)
	if banned {
		return d.store.Set(ctx, path, true)
	}
	return d.store.Delete(ctx, path)
}

// Players lists every account stub in key order.
func (d *Directory) Players(ctx context.Context) ([]domain.PlayerSummary, error) {
	docs, err := d.store.Snapshot(ctx, CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}

	players := make([]domain.PlayerSummary, 0, len(docs))
	for _, doc := range docs {
		var acct domain.UserAccount
		if err := store.Decode(doc.Value, &acct); err != nil {
			d.logger.Warn("Skipping malformed account", "player_id", doc.Key, "error", err)
			continue
		}
		players = append(players, domain.PlayerSummary{ID: doc.Key, Username: acct.Username})
	}
	return players, nil
}

// Saves returns every game save in key order.
func (d *Directory) Saves(ctx context.Context) ([]Save, error) {
	docs, err := d.store.Snapshot(ctx, CollectionGameData)
	if err != nil {
		return nil, fmt.Errorf("reading game data: %w", err)
	}

	saves := make([]Save, 0, len(docs))
	for _, doc := range docs {
		var rec domain.PlayerRecord
		if err := store.Decode(doc.Value, &rec); err != nil {
			d.logger.Warn("Skipping malformed save", "player_id", doc.Key, "error", err)
			continue
		}
		saves = append(saves, Save{ID: doc.Key, Record: &rec})
	}
	return saves, nil
}

// Player returns the game save of id.
func (d *Directory) Player(ctx context.Context, id string) (*domain.PlayerRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var rec domain.PlayerRecord
	if err := d.get(ctx, store.Join(CollectionGameData, id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Account returns the account stub of id.
func (d *Directory) Account(ctx context.Context, id string) (*domain.UserAccount, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var acct domain.UserAccount
	if err := d.get(ctx, store.Join(CollectionUsers, id), &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Entry returns the leaderboard projection of id.
func (d *Directory) Entry(ctx context.Context, id string) (*domain.LeaderboardEntry, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var e domain.LeaderboardEntry
	if err := d.get(ctx, store.Join(CollectionLeaderboard, id), &e); err != nil {
		return nil, err
	}
	e.UserID = id
	return &e, nil
}

// Number reads a numeric field of a save. A missing field reads as zero;
// a missing save is domain.ErrRecordNotFound.
func (d *Directory) Number(ctx context.Context, id, fieldPath string) (float64, error) {
	if err := validID(id); err != nil {
		return 0, err
	}
	raw, err := d.store.Get(ctx, store.Join(CollectionGameData, id))
	if err != nil {
		return 0, err
	}
	value, found, err := store.Lookup(raw, strings.Split(fieldPath, "/"))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	var n float64
	if err := json.Unmarshal(value, &n); err != nil {
		return 0, fmt.Errorf("%s/%s is not a number: %w", id, fieldPath, domain.ErrInvalidField)
	}
	return n, nil
}

// WriteField overwrites one field of a save.
func (d *Directory) WriteField(ctx context.Context, id, fieldPath string, value any) error {
	if err := validID(id); err != nil {
		return err
	}
	path := store.Join(CollectionGameData, id, fieldPath)
	if _, err := store.ParsePath(path); err != nil {
		return err
	}
	return d.store.Set(ctx, path, value)
}

// DeletePlayer removes id from every collection that indexes it. Every
// step is attempted; the result holds one outcome per location. An invalid
// id fails every step without touching the store.
func (d *Directory) DeletePlayer(ctx context.Context, id string) domain.Outcomes {
	invalid := validID(id)
	outcomes := make(domain.Outcomes, 0, len(playerCollections))
	for _, c := range playerCollections {
		path := store.Join(c, id)
		if invalid != nil {
			outcomes = append(outcomes, domain.StepOutcome{Path: path, Err: invalid})
			continue
		}
		outcomes = append(outcomes, domain.StepOutcome{Path: path, Err: d.store.Delete(ctx, path)})
	}
	return outcomes
}

// SetUsername writes the username to the save, the account stub and the
// username index, attempting all three.
func (d *Directory) SetUsername(ctx context.Context, id, username string) domain.Outcomes {
	index := map[string]any{
		"username":  username,
		"timestamp": d.now().UnixMilli(),
	}
	steps := []struct {
		path  string
		value any
	}{
		{store.Join(CollectionGameData, id, "username"), username},
		{store.Join(CollectionUsers, id, "username"), username},
		{store.Join(CollectionUsernames, id), index},
	}

	invalid := validID(id)
	outcomes := make(domain.Outcomes, 0, len(steps))
	for _, s := range steps {
		if invalid != nil {
			outcomes = append(outcomes, domain.StepOutcome{Path: s.path, Err: invalid})
			continue
		}
		outcomes = append(outcomes, domain.StepOutcome{Path: s.path, Err: d.store.Set(ctx, s.path, s.value)})
	}
	return outcomes
}

// FindByUsername returns the first save whose username matches, ignoring case.
func (d *Directory) FindByUsername(ctx context.Context, username string) (*Save, error) {
	saves, err := d.Saves(ctx)
	if err != nil {
		return nil, err
	}
	for i := range saves {
		if strings.EqualFold(saves[i].Record.Username, username) {
			return &saves[i], nil
		}
	}
	return nil, fmt.Errorf("username %q: %w", username, domain.ErrRecordNotFound)
}

// FindByLoginCode returns the player whose login code equals code exactly.
func (d *Directory) FindByLoginCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", domain.ErrInvalidLoginCode
	}
	docs, err := d.store.Snapshot(ctx, CollectionUsers)
	if err != nil {
		return "", fmt.Errorf("reading users: %w", err)
	}
	for _, doc := range docs {
		var acct domain.UserAccount
		if err := store.Decode(doc.Value, &acct); err != nil {
			continue
		}
		if acct.LoginCode == code {
			return doc.Key, nil
		}
	}
	return "", domain.ErrInvalidLoginCode
}

// SaveProgress replaces the game document of id with data, unchanged, and
// when entry is non-nil writes its leaderboard projection.
func (d *Directory) SaveProgress(ctx context.Context, id string, data json.RawMessage, entry *domain.LeaderboardEntry) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := d.store.Set(ctx, store.Join(CollectionGameData, id), data); err != nil {
		return fmt.Errorf("writing save: %w", err)
	}
	if entry == nil {
		return nil
	}
	entry.UserID = id
	if err := d.store.Set(ctx, store.Join(CollectionLeaderboard, id), entry); err != nil {
		return fmt.Errorf("writing leaderboard entry: %w", err)
	}
	return nil
}

func (d *Directory) get(ctx context.Context, path string, dst any) error {
	raw, err := d.store.Get(ctx, path)
	if err != nil {
		return err
	}
	return store.Decode(raw, dst)
}

// validID rejects identifiers that would address something other than one
// whole document once joined into a store path.
func validID(id string) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: invalid identifier %q", domain.ErrInvalidRequest, id)
	}
	return nil
}

func isTrue(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("true"))
}
