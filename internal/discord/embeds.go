package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clicker-admin/internal/domain"
)

// Embed colors
const (
	colorGold   = 0xF1C40F
	colorGreen  = 0x2ECC71
	colorBlue   = 0x3498DB
	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
	colorPurple = 0x9B59B6
)

func field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}

func errorEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "❌ " + title, Description: description, Color: colorRed}
}

func linkHelpField() *discordgo.MessageEmbedField {
	return field("📝 How to Link:",
		"1️⃣ Open Money Clicker game\n"+
			"2️⃣ Find your **Login Code** in the settings\n"+
			"3️⃣ Use the command: `!link <your-login-code>`", false)
}

func linkedEmbed(result *domain.LinkResult) *discordgo.MessageEmbed {
	if result.Record == nil {
		return &discordgo.MessageEmbed{
			Title:       "✅ Account Linked Successfully!",
			Description: "Your Discord account is now linked. Play a round so your save can be found!",
			Color:       colorGreen,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Player ID: " + result.GameUserID},
		}
	}

	rec := result.Record
	embed := &discordgo.MessageEmbed{
		Title:       "✅ Account Linked Successfully!",
		Description: fmt.Sprintf("Your Discord account is now linked to **%s**!", rec.Username),
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			field("💰 Money", FormatNumber(rec.Money), true),
			field("💎 Gems", FormatNumber(float64(rec.Gems)), true),
			field("🏆 Tier", strconv.FormatInt(rec.HighestTier, 10), true),
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Player ID: " + result.GameUserID},
	}
	if result.RewardGems > 0 {
		embed.Fields = append(embed.Fields, field("🎁 Bonus",
			fmt.Sprintf("You received **%s Gems** for linking your account!", FormatNumber(float64(result.RewardGems))), false))
	}
	return embed
}

// playerEmbed renders a save. title is prefixed to the username.
func playerEmbed(title string, detail *domain.PlayerDetail) *discordgo.MessageEmbed {
	rec := detail.Record
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📊 %s%s", title, rec.Username),
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			field("💰 Money", FormatNumber(rec.Money), true),
			field("💎 Gems", FormatNumber(float64(rec.Gems)), true),
			field("🏆 Tier", strconv.FormatInt(rec.HighestTier, 10), true),
			field("⚡ Money/Click", FormatNumber(rec.MoneyPerClick), true),
			field("🖱️ Total Clicks", FormatNumber(float64(rec.ClicksTotal)), true),
			field("⏰ Play Time", FormatHours(rec.TotalTimePlayed), true),
			field("🔄 Rebirth Points", strconv.FormatInt(rec.RebirthPoints, 10), true),
			field("🌟 Achievements", strconv.Itoa(len(rec.Achievements)), true),
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Player ID: " + detail.ID},
	}

	var ranks []string
	for _, c := range domain.Categories {
		if r := detail.Ranks[c]; r != nil {
			ranks = append(ranks, fmt.Sprintf("%s #%d", categoryTitles[c], *r))
		}
	}
	if len(ranks) > 0 {
		embed.Fields = append(embed.Fields, field("🏅 Ranks", strings.Join(ranks, "\n"), false))
	}
	if detail.Banned {
		embed.Fields = append(embed.Fields, field("⚠️ Status", "🚫 Banned from Leaderboards", false))
	}
	return embed
}

func leaderboardEmbed(view *domain.LeaderboardView, now time.Time) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, e := range view.Entries {
		fmt.Fprintf(&b, "%s %s - %s\n", rankLabel(e.Rank), e.Username, formatValue(view.Category, e.Value(view.Category)))
	}
	description := b.String()
	if description == "" {
		description = "No players yet!"
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🏆 Top %d - %s", len(view.Entries), categoryTitles[view.Category]),
		Description: description,
		Color:       colorGold,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Money Clicker Stats"},
	}
}

func grantEmbed(title, unit, username string, amount, total float64, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "✅ " + title,
		Description: fmt.Sprintf("Gave **%s** %s to **%s**", FormatNumber(amount), unit, username),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			field("Previous", FormatNumber(total-amount), true),
			field("New Total", FormatNumber(total), true),
		},
	}
}

func statsEmbed(stats *domain.GlobalStats, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:     "📊 Money Clicker - Global Stats",
		Color:     colorBlue,
		Timestamp: now.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			field("👥 Total Players", FormatNumber(float64(stats.TotalPlayers)), true),
			field("💰 Total Money", FormatNumber(stats.TotalMoney), true),
			field("🖱️ Total Clicks", FormatNumber(float64(stats.TotalClicks)), true),
			field("💎 Total Gems", FormatNumber(float64(stats.TotalGems)), true),
			field("🔗 Linked Accounts", FormatNumber(float64(stats.LinkedCount)), true),
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Money Clicker Statistics"},
	}
}

// AnnouncementEmbed renders a relayed announcement.
func AnnouncementEmbed(a domain.Announcement) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "📢 Admin Announcement",
		Description: a.Message,
		Color:       colorGold,
		Timestamp:   a.CreatedAt,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Sent from Admin Dashboard"},
	}
}

func welcomeEmbed(mention string, reward int64) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎮 Welcome to Money Clicker!",
		Description: fmt.Sprintf("Hey %s! Welcome to our server!", mention),
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			field("📨 Check your DMs!", "I've sent you instructions to link your game account!", false),
			field("🎁 Rewards", fmt.Sprintf("Link your account to get **%d FREE GEMS**!", reward), false),
		},
	}
}

func linkInstructionsEmbed(reward int64, gameURL string) *discordgo.MessageEmbed {
	benefits := fmt.Sprintf("✅ **%d FREE GEMS** for linking!\n✅ See your own stats anytime with `!me`", reward)
	embed := &discordgo.MessageEmbed{
		Title:       "🔗 Link Your Game Account",
		Description: "Connect your Money Clicker account to unlock exclusive rewards!",
		Color:       colorBlue,
		URL:         gameURL,
		Fields: []*discordgo.MessageEmbedField{
			linkHelpField(),
			field("🎁 Benefits:", benefits, false),
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Your login code is safe and only used for linking!"},
	}
	return embed
}
