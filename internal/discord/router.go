package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/service"
)

// Invocation is a command together with who sent it.
type Invocation struct {
	Command
	AuthorID   string
	AuthorName string
	IsAdmin    bool
}

// Reply is what the bot posts back to the channel.
type Reply struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
}

func embedReply(e *discordgo.MessageEmbed) Reply {
	return Reply{Embeds: []*discordgo.MessageEmbed{e}}
}

// Router turns parsed commands into bot service calls and replies.
type Router struct {
	svc    *service.BotService
	config *config.DiscordConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRouter creates a command router
func NewRouter(svc *service.BotService, cfg *config.DiscordConfig, logger *slog.Logger) *Router {
	return &Router{
		svc:    svc,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Handle runs inv. The second result is false for unknown commands,
// which are ignored.
func (r *Router) Handle(ctx context.Context, inv Invocation) (Reply, bool) {
	handler, ok := r.handlers()[inv.Name]
	if !ok {
		return Reply{}, false
	}
	if inv.RequiresAdmin() && !inv.IsAdmin {
		return Reply{Content: "❌ You don't have permission to use this command!"}, true
	}

	reply, err := handler(ctx, inv)
	if err != nil {
		return r.errorReply(inv, err), true
	}
	return reply, true
}

type commandFunc func(ctx context.Context, inv Invocation) (Reply, error)

func (r *Router) handlers() map[string]commandFunc {
	return map[string]commandFunc{
		CmdLink:        r.link,
		CmdMe:          r.me,
		CmdUnlink:      r.unlink,
		CmdLeaderboard: r.leaderboard,
		CmdPlayer:      r.player,
		CmdStats:       r.stats,
		CmdGiveMoney:   r.giveMoney,
		CmdGiveGems:    r.giveGems,
		CmdBan:         r.ban,
		CmdUnban:       r.unban,
		CmdAnnounce:    r.announce,
	}
}

// errMissingArgument is shown with the command's usage.
var errMissingArgument = errors.New("missing argument")

var usage = map[string]string{
	CmdLink:      "!link <login-code>",
	CmdUnlink:    "!unlink @user",
	CmdPlayer:    "!player <username>",
	CmdGiveMoney: "!givemoney <username|@user> <amount>",
	CmdGiveGems:  "!givegems <username|@user> <amount>",
	CmdBan:       "!ban <username|@user>",
	CmdUnban:     "!unban <username|@user>",
	CmdAnnounce:  "!announce <message>",
}

func (r *Router) errorReply(inv Invocation, err error) Reply {
	switch {
	case errors.Is(err, errMissingArgument):
		return Reply{Content: fmt.Sprintf("❌ Missing argument! Usage: `%s`", usage[inv.Name])}
	case errors.Is(err, domain.ErrNotLinked):
		if inv.Name == CmdUnlink {
			return Reply{Content: "❌ That user doesn't have a linked account!"}
		}
		e := errorEmbed("Account Not Linked", "You need to link your game account first!")
		e.Fields = []*discordgo.MessageEmbedField{linkHelpField()}
		return embedReply(e)
	case errors.Is(err, domain.ErrAlreadyLinked):
		return embedReply(&discordgo.MessageEmbed{
			Title:       "⚠️ Already Linked",
			Description: "Your Discord account is already linked to a game account.",
			Color:       colorOrange,
			Fields:      []*discordgo.MessageEmbedField{field("💡 Want to change?", "Contact an admin to unlink first.", false)},
		})
	case errors.Is(err, domain.ErrInvalidLoginCode):
		e := errorEmbed("Invalid Login Code", "No account found with that login code.")
		e.Fields = []*discordgo.MessageEmbedField{field("Make sure:",
			"✅ You copied the **entire** login code\n✅ You're using the **current** code", false)}
		return embedReply(e)
	case errors.Is(err, domain.ErrRecordNotFound):
		return Reply{Content: "❌ Player not found!"}
	case errors.Is(err, domain.ErrInvalidCategory):
		return Reply{Content: "❌ Invalid category! Use: " + strings.Join(domain.ChatAliases(), ", ")}
	case errors.Is(err, domain.ErrInvalidAmount):
		return Reply{Content: "❌ Amount must be a positive number!"}
	default:
		r.logger.Error("chat command failed", "command", inv.Name, "author_id", inv.AuthorID, "error", err)
		return Reply{Content: "❌ An error occurred, please try again later."}
	}
}

func (r *Router) link(ctx context.Context, inv Invocation) (Reply, error) {
	if len(inv.Args) == 0 {
		e := errorEmbed("Missing Login Code", "You need to provide your login code!")
		e.Fields = []*discordgo.MessageEmbedField{linkHelpField()}
		return embedReply(e), nil
	}
	result, err := r.svc.Link(ctx, inv.AuthorID, inv.Args[0])
	if err != nil {
		return Reply{}, err
	}
	return embedReply(linkedEmbed(result)), nil
}

func (r *Router) me(ctx context.Context, inv Invocation) (Reply, error) {
	detail, err := r.svc.Me(ctx, inv.AuthorID)
	if err != nil {
		return Reply{}, err
	}
	return embedReply(playerEmbed("Your Stats - ", detail)), nil
}

func (r *Router) unlink(ctx context.Context, inv Invocation) (Reply, error) {
	if len(inv.Args) == 0 {
		return Reply{}, errMissingArgument
	}
	id, ok := mentionID(inv.Args[0])
	if !ok {
		return Reply{}, errMissingArgument
	}
	if err := r.svc.Unlink(ctx, id); err != nil {
		return Reply{}, err
	}
	return embedReply(&discordgo.MessageEmbed{
		Title:       "✅ Account Unlinked",
		Description: fmt.Sprintf("Unlinked <@%s>'s game account", id),
		Color:       colorGreen,
	}), nil
}

func (r *Router) leaderboard(ctx context.Context, inv Invocation) (Reply, error) {
	alias := "money"
	if len(inv.Args) > 0 {
		alias = inv.Args[0]
	}
	view, err := r.svc.Leaderboard(ctx, alias, 0)
	if err != nil {
		return Reply{}, err
	}
	return embedReply(leaderboardEmbed(view, r.now())), nil
}

func (r *Router) player(ctx context.Context, inv Invocation) (Reply, error) {
	if inv.Rest == "" {
		return Reply{}, errMissingArgument
	}
	detail, err := r.svc.Player(ctx, inv.Rest)
	if err != nil {
		return Reply{}, err
	}
	return embedReply(playerEmbed("Player Stats: ", detail)), nil
}

func (r *Router) stats(ctx context.Context, _ Invocation) (Reply, error) {
	stats, err := r.svc.GlobalStats(ctx)
	if err != nil {
		return Reply{}, err
	}
	return embedReply(statsEmbed(stats, r.now())), nil
}

func (r *Router) giveMoney(ctx context.Context, inv Invocation) (Reply, error) {
	target, amount, err := targetAndAmount(inv)
	if err != nil {
		return Reply{}, err
	}
	detail, err := r.svc.GiveMoney(ctx, target, amount)
	if err != nil {
		return Reply{}, err
	}
	return embedReply(grantEmbed("Money Added", "money", detail.Record.Username, amount, detail.Record.Money, colorGreen)), nil
}

func (r *Router) giveGems(ctx context.Context, inv Invocation) (Reply, error) {
	target, amount, err := targetAndAmount(inv)
	if err != nil {
		return Reply{}, err
	}
	detail, err := r.svc.GiveGems(ctx, target, amount)
	if err != nil {
		return Reply{}, err
	}
	return embedReply(grantEmbed("Gems Added", "gems", detail.Record.Username, amount, float64(detail.Record.Gems), colorPurple)), nil
}

func targetAndAmount(inv Invocation) (service.Target, float64, error) {
	if len(inv.Args) < 2 {
		return service.Target{}, 0, errMissingArgument
	}
	amount, err := parseAmount(inv.Args[1])
	if err != nil {
		return service.Target{}, 0, err
	}
	return parseTarget(inv.Args[0]), amount, nil
}

func (r *Router) ban(ctx context.Context, inv Invocation) (Reply, error) {
	if len(inv.Args) == 0 {
		return Reply{}, errMissingArgument
	}
	if _, err := r.svc.Ban(ctx, parseTarget(inv.Args[0])); err != nil {
		return Reply{}, err
	}
	return embedReply(&discordgo.MessageEmbed{
		Title:       "🚫 Player Banned",
		Description: fmt.Sprintf("**%s** has been banned from leaderboards", inv.Args[0]),
		Color:       colorRed,
	}), nil
}

func (r *Router) unban(ctx context.Context, inv Invocation) (Reply, error) {
	if len(inv.Args) == 0 {
		return Reply{}, errMissingArgument
	}
	if _, err := r.svc.Unban(ctx, parseTarget(inv.Args[0])); err != nil {
		return Reply{}, err
	}
	return embedReply(&discordgo.MessageEmbed{
		Title:       "✅ Player Unbanned",
		Description: fmt.Sprintf("**%s** has been unbanned from leaderboards", inv.Args[0]),
		Color:       colorGreen,
	}), nil
}

func (r *Router) announce(ctx context.Context, inv Invocation) (Reply, error) {
	if inv.Rest == "" {
		return Reply{}, errMissingArgument
	}
	if _, err := r.svc.Announce(ctx, inv.Rest); err != nil {
		return Reply{}, err
	}
	return embedReply(&discordgo.MessageEmbed{
		Title:       "📢 Announcement queued",
		Description: inv.Rest,
		Color:       colorGold,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Posted by " + inv.AuthorName},
	}), nil
}
