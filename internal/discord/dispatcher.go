package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/clicker-admin/internal/domain"
)

// Name identifies the bot as an announcement destination.
func (b *Bot) Name() string { return "discord" }

// Dispatch posts a to every guild the bot is in, using the announcements
// channel or else the fallback channel. Guilds with neither are skipped.
func (b *Bot) Dispatch(ctx context.Context, a domain.Announcement) error {
	embed := AnnouncementEmbed(a)

	b.session.State.RLock()
	guildIDs := make([]string, 0, len(b.session.State.Guilds))
	for _, g := range b.session.State.Guilds {
		guildIDs = append(guildIDs, g.ID)
	}
	b.session.State.RUnlock()

	var errs []error
	for _, guildID := range guildIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		channels, err := b.guildChannels(b.session, guildID)
		if err != nil {
			errs = append(errs, fmt.Errorf("guild %s: listing channels: %w", guildID, err))
			continue
		}
		channel := pickChannel(channels, b.relay.Channel, b.relay.FallbackChannel)
		if channel == nil {
			b.logger.Debug("no announcement channel in guild", "guild_id", guildID)
			continue
		}

		if _, err := b.session.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
			b.logger.Warn("failed to send announcement", "guild_id", guildID, "channel", channel.Name, "error", err)
			errs = append(errs, fmt.Errorf("guild %s: %w", guildID, err))
			continue
		}
		b.logger.Info("Sent announcement", "guild_id", guildID, "channel", channel.Name, "announcement_id", a.ID)
	}
	return errors.Join(errs...)
}

// pickChannel returns the first text channel matching the names in
// order of preference.
func pickChannel(channels []*discordgo.Channel, names ...string) *discordgo.Channel {
	for _, name := range names {
		if name == "" {
			continue
		}
		for _, c := range channels {
			if c.Type == discordgo.ChannelTypeGuildText && c.Name == name {
				return c
			}
		}
	}
	return nil
}
