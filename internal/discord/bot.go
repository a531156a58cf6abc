// Package discord is the chat surface: it parses prefix commands, checks
// the admin role, renders replies and relays announcements to guilds.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/service"
)

const commandTimeout = 10 * time.Second

// Bot owns the gateway session
type Bot struct {
	session *discordgo.Session
	router  *Router
	config  *config.DiscordConfig
	relay   *config.RelayConfig
	logger  *slog.Logger
}

// NewBot creates a bot. The gateway is not contacted until Start.
func NewBot(cfg *config.DiscordConfig, relayCfg *config.RelayConfig, router *Router, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMembers |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		router:  router,
		config:  cfg,
		relay:   relayCfg,
		logger:  logger,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onMemberAdd)
	return b, nil
}

// Start opens the gateway connection
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	b.logger.Info("Discord bot started")
	return nil
}

// Stop closes the gateway connection
func (b *Bot) Stop() error {
	b.logger.Info("Stopping discord bot")
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("Discord bot ready", "user", r.User.Username, "guilds", len(r.Guilds))
	if err := s.UpdateGameStatus(0, fmt.Sprintf("Money Clicker | %slink to connect", b.config.Prefix)); err != nil {
		b.logger.Warn("failed to set bot status", "error", err)
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	cmd, ok := ParseCommand(b.config.Prefix, m.Content)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	ctx = service.WithActor(ctx, "discord:"+m.Author.ID)

	inv := Invocation{
		Command:    cmd,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
	}
	if cmd.RequiresAdmin() {
		inv.IsAdmin = b.isAdmin(s, m)
	}

	reply, handled := b.router.Handle(ctx, inv)
	if !handled {
		return
	}
	b.logger.Debug("chat command handled", "command", cmd.Name, "author_id", m.Author.ID)

	if _, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content: reply.Content,
		Embeds:  reply.Embeds,
	}); err != nil {
		b.logger.Warn("failed to send reply", "channel_id", m.ChannelID, "command", cmd.Name, "error", err)
	}
}

// isAdmin checks the author's guild roles for the admin role. Direct
// messages never carry admin rights.
func (b *Bot) isAdmin(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.GuildID == "" || m.Member == nil {
		return false
	}
	roles, err := b.guildRoles(s, m.GuildID)
	if err != nil {
		b.logger.Warn("failed to load guild roles", "guild_id", m.GuildID, "error", err)
		return false
	}
	return hasRoleNamed(roles, m.Member.Roles, b.config.AdminRole)
}

func (b *Bot) guildRoles(s *discordgo.Session, guildID string) ([]*discordgo.Role, error) {
	if g, err := s.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		return g.Roles, nil
	}
	return s.GuildRoles(guildID)
}

func hasRoleNamed(roles []*discordgo.Role, memberRoleIDs []string, name string) bool {
	held := make(map[string]bool, len(memberRoleIDs))
	for _, id := range memberRoleIDs {
		held[id] = true
	}
	for _, r := range roles {
		if r.Name == name && held[r.ID] {
			return true
		}
	}
	return false
}

func (b *Bot) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}
	log := b.logger.With("guild_id", m.GuildID, "user_id", m.User.ID)

	var welcome *discordgo.Channel
	if channels, err := b.guildChannels(s, m.GuildID); err != nil {
		log.Warn("failed to list guild channels", "error", err)
	} else {
		welcome = pickChannel(channels, b.relay.FallbackChannel)
	}
	if welcome != nil {
		if _, err := s.ChannelMessageSendEmbed(welcome.ID, welcomeEmbed(m.User.Mention(), b.config.LinkReward)); err != nil {
			log.Warn("failed to post welcome", "error", err)
		}
	}

	dm, err := s.UserChannelCreate(m.User.ID)
	if err == nil {
		_, err = s.ChannelMessageSendEmbed(dm.ID, linkInstructionsEmbed(b.config.LinkReward, b.config.GameURL))
	}
	if err != nil {
		log.Info("could not DM new member", "error", err)
		if welcome != nil {
			msg := fmt.Sprintf("%s Please enable DMs to link your account! Or use `%slink <login-code>` here.", m.User.Mention(), b.config.Prefix)
			if _, err := s.ChannelMessageSend(welcome.ID, msg); err != nil {
				log.Warn("failed to post DM fallback", "error", err)
			}
		}
	}
}

func (b *Bot) guildChannels(s *discordgo.Session, guildID string) ([]*discordgo.Channel, error) {
	if g, err := s.State.Guild(guildID); err == nil && len(g.Channels) > 0 {
		return g.Channels, nil
	}
	return s.GuildChannels(guildID)
}
