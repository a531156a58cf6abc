package service

import (
	"context"
	"sync"

	"github.com/clicker-admin/internal/domain"
)

// LinkLoader reads a chat link from durable storage.
type LinkLoader interface {
	LinkFor(ctx context.Context, chatID string) (*domain.AccountLink, error)
}

// LinkCache keeps chat identity to player id mappings in front of the
// store. Misses are loaded and remembered; unlinked identities are not
// cached, so a link made elsewhere is seen on the next lookup.
type LinkCache struct {
	loader LinkLoader

	mu      sync.RWMutex
	entries map[string]string
}

// NewLinkCache creates an empty cache over loader
func NewLinkCache(loader LinkLoader) *LinkCache {
	return &LinkCache{
		loader:  loader,
		entries: make(map[string]string),
	}
}

// Get returns the player linked to chatID, loading it on a miss.
// It returns domain.ErrNotLinked when no link exists.
func (c *LinkCache) Get(ctx context.Context, chatID string) (string, error) {
	c.mu.RLock()
	id, ok := c.entries[chatID]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	link, err := c.loader.LinkFor(ctx, chatID)
	if err != nil {
		return "", err
	}
	c.Put(chatID, link.GameUserID)
	return link.GameUserID, nil
}

// Put records a link just written to the store.
func (c *LinkCache) Put(chatID, gameUserID string) {
	c.mu.Lock()
	c.entries[chatID] = gameUserID
	c.mu.Unlock()
}

// Invalidate forgets chatID. Called on unlink.
func (c *LinkCache) Invalidate(chatID string) {
	c.mu.Lock()
	delete(c.entries, chatID)
	c.mu.Unlock()
}

// Len returns the number of cached links
func (c *LinkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
