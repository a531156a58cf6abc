package discord

import (
	"testing"

	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Command
		ok      bool
	}{
		{"plain", "!me", Command{Name: CmdMe, Args: []string{}}, true},
		{"alias", "!lb gems", Command{Name: CmdLeaderboard, Args: []string{"gems"}, Rest: "gems"}, true},
		{"case insensitive", "!TOP", Command{Name: CmdLeaderboard, Args: []string{}}, true},
		{"profile alias", "!profile Big Spender", Command{Name: CmdPlayer, Args: []string{"Big", "Spender"}, Rest: "Big Spender"}, true},
		{"surrounding space", "  !link  abc123  ", Command{Name: CmdLink, Args: []string{"abc123"}, Rest: "abc123"}, true},
		{"no prefix", "hello !me", Command{}, false},
		{"prefix only", "!", Command{}, false},
		{"unknown kept", "!dance", Command{Name: "dance", Args: []string{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand("!", tt.content)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequiresAdmin(t *testing.T) {
	for _, name := range []string{CmdGiveMoney, CmdGiveGems, CmdBan, CmdUnban, CmdUnlink, CmdAnnounce} {
		assert.True(t, Command{Name: name}.RequiresAdmin(), name)
	}
	for _, name := range []string{CmdLink, CmdMe, CmdLeaderboard, CmdPlayer, CmdStats} {
		assert.False(t, Command{Name: name}.RequiresAdmin(), name)
	}
}

func TestParseTarget(t *testing.T) {
	assert.Equal(t, service.Target{ChatID: "123456"}, parseTarget("<@123456>"))
	assert.Equal(t, service.Target{ChatID: "123456"}, parseTarget("<@!123456>"))
	assert.Equal(t, service.Target{Username: "alice"}, parseTarget("alice"))
	assert.Equal(t, service.Target{Username: "<@abc>"}, parseTarget("<@abc>"))
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("1,500")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, v)

	v, err = parseAmount("2.5e9")
	require.NoError(t, err)
	assert.Equal(t, 2.5e9, v)

	for _, bad := range []string{"", "abc", "0", "-5", "NaN", "Inf"} {
		_, err := parseAmount(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, bad)
	}
}
