package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/store"
)

// Link records that chatID owns gameUserID.
func (d *Directory) Link(ctx context.Context, chatID, gameUserID string) (*domain.AccountLink, error) {
	if err := errors.Join(validID(chatID), validID(gameUserID)); err != nil {
		return nil, err
	}
	link := &domain.AccountLink{
		ChatID:     chatID,
		GameUserID: gameUserID,
		LinkedAt:   d.now().UTC().Format(domain.TimeLayout),
	}
	if err := d.store.Set(ctx, store.Join(CollectionLinks, chatID), link); err != nil {
		return nil, fmt.Errorf("writing link: %w", err)
	}
	return link, nil
}

// LinkFor returns the link of chatID, or domain.ErrNotLinked.
func (d *Directory) LinkFor(ctx context.Context, chatID string) (*domain.AccountLink, error) {
	if err := validID(chatID); err != nil {
		return nil, err
	}
	var link domain.AccountLink
	err := d.get(ctx, store.Join(CollectionLinks, chatID), &link)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.ErrNotLinked
	}
	if err != nil {
		return nil, err
	}
	link.ChatID = chatID
	return &link, nil
}

// Unlink removes the link of chatID.
func (d *Directory) Unlink(ctx context.Context, chatID string) error {
	if err := validID(chatID); err != nil {
		return err
	}
	return d.store.Delete(ctx, store.Join(CollectionLinks, chatID))
}

// Links lists every link in chat identifier order.
func (d *Directory) Links(ctx context.Context) ([]domain.AccountLink, error) {
	docs, err := d.store.Snapshot(ctx, CollectionLinks)
	if err != nil {
		return nil, fmt.Errorf("reading links: %w", err)
	}

	links := make([]domain.AccountLink, 0, len(docs))
	for _, doc := range docs {
		var link domain.AccountLink
		if err := store.Decode(doc.Value, &link); err != nil {
			d.logger.Warn("Skipping malformed link", "chat_id", doc.Key, "error", err)
			continue
		}
		link.ChatID = doc.Key
		links = append(links, link)
	}
	return links, nil
}

// QueueAnnouncement appends an unsent announcement and returns its key.
func (d *Directory) QueueAnnouncement(ctx context.Context, message string) (*domain.Announcement, error) {
	a := &domain.Announcement{
		Message:   message,
		CreatedAt: d.now().UTC().Format(domain.TimeLayout),
	}
	id, err := d.store.Push(ctx, CollectionAnnouncements, a)
	if err != nil {
		return nil, fmt.Errorf("queueing announcement: %w", err)
	}
	a.ID = id
	return a, nil
}

// PendingAnnouncements returns unsent announcements oldest first.
func (d *Directory) PendingAnnouncements(ctx context.Context) ([]domain.Announcement, error) {
	docs, err := d.store.Snapshot(ctx, CollectionAnnouncements)
	if err != nil {
		return nil, fmt.Errorf("reading announcements: %w", err)
	}

	var pending []domain.Announcement
	for _, doc := range docs {
		var a domain.Announcement
		if err := store.Decode(doc.Value, &a); err != nil {
			d.logger.Warn("Skipping malformed announcement", "announcement_id", doc.Key, "error", err)
			continue
		}
		if a.Sent {
			continue
		}
		a.ID = doc.Key
		pending = append(pending, a)
	}
	return pending, nil
}

// MarkAnnouncementSent flags an announcement as consumed.
func (d *Directory) MarkAnnouncementSent(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	base := store.Join(CollectionAnnouncements, id)
	if err := d.store.Set(ctx, store.Join(base, "sent"), true); err != nil {
		return fmt.Errorf("marking announcement sent: %w", err)
	}
	at := d.now().UTC().Format(domain.TimeLayout)
	if err := d.store.Set(ctx, store.Join(base, "sent_at"), at); err != nil {
		return fmt.Errorf("stamping announcement: %w", err)
	}
	return nil
}
