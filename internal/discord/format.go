package discord

import (
	"fmt"
	"math"
	"strconv"

	"github.com/clicker-admin/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// scientificThreshold is where numbers switch to exponent notation.
const scientificThreshold = 1e8

var printer = message.NewPrinter(language.English)

// FormatNumber renders v with thousands separators, or in scientific
// notation with two decimals once it reaches 1e8.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v >= scientificThreshold {
		return strconv.FormatFloat(v, 'e', 2, 64)
	}
	return printer.Sprintf("%.0f", v)
}

// FormatHours renders a duration in seconds as fractional hours.
func FormatHours(seconds float64) string {
	return fmt.Sprintf("%.1fh", seconds/3600)
}

// formatValue renders a leaderboard value for its category.
func formatValue(c domain.Category, v float64) string {
	if c == domain.CategoryOnlineTime {
		return FormatHours(v)
	}
	return FormatNumber(v)
}

var categoryTitles = map[domain.Category]string{
	domain.CategoryAllTimeMoney:  "💰 Money",
	domain.CategoryTotalGems:     "💎 Gems",
	domain.CategoryTotalTiers:    "🏆 Highest Tier",
	domain.CategoryMoneyPerClick: "⚡ Money per Click",
	domain.CategoryOnlineTime:    "⏰ Play Time",
	domain.CategoryTotalClicks:   "🖱️ Total Clicks",
}

var medals = []string{"🥇", "🥈", "🥉"}

func rankLabel(rank int) string {
	if rank >= 1 && rank <= len(medals) {
		return medals[rank-1]
	}
	return fmt.Sprintf("**%d.**", rank)
}
