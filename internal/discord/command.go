package discord

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/service"
)

// Command names
const (
	CmdLink        = "link"
	CmdMe          = "me"
	CmdUnlink      = "unlink"
	CmdLeaderboard = "leaderboard"
	CmdPlayer      = "player"
	CmdStats       = "stats"
	CmdGiveMoney   = "givemoney"
	CmdGiveGems    = "givegems"
	CmdBan         = "ban"
	CmdUnban       = "unban"
	CmdAnnounce    = "announce"
)

var aliases = map[string]string{
	"lb":        CmdLeaderboard,
	"top":       CmdLeaderboard,
	"profile":   CmdPlayer,
	"myaccount": CmdMe,
	"mystats":   CmdMe,
}

// adminCommands require the configured admin role.
var adminCommands = map[string]bool{
	CmdUnlink:    true,
	CmdGiveMoney: true,
	CmdGiveGems:  true,
	CmdBan:       true,
	CmdUnban:     true,
	CmdAnnounce:  true,
}

// Command is a parsed chat command
type Command struct {
	Name string
	Args []string
	// Rest is everything after the command name, untrimmed of inner spaces.
	Rest string
}

// ParseCommand splits content into a command when it starts with prefix.
// Unknown command names are returned as-is; the router ignores them.
func ParseCommand(prefix, content string) (Command, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}
	body := strings.TrimPrefix(content, prefix)
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return Command{}, false
	}

	name := strings.ToLower(fields[0])
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), fields[0]))
	return Command{Name: name, Args: fields[1:], Rest: rest}, true
}

// RequiresAdmin reports whether the command is restricted.
func (c Command) RequiresAdmin() bool {
	return adminCommands[c.Name]
}

// mentionID extracts the user id from a <@id> or <@!id> mention.
func mentionID(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "<@") || !strings.HasSuffix(arg, ">") {
		return "", false
	}
	id := strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">"), "!")
	if id == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", false
	}
	return id, true
}

// parseTarget reads a mention or a username.
func parseTarget(arg string) service.Target {
	if id, ok := mentionID(arg); ok {
		return service.Target{ChatID: id}
	}
	return service.Target{Username: arg}
}

// parseAmount reads a positive, finite amount.
func parseAmount(arg string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(arg, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, arg)
	}
	return v, nil
}
