package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drops-stats/drops/internal/steamid"
)

func TestParseTopOrder(t *testing.T) {
	for _, valid := range []string{"drops", "dps", "dpg", "dpu"} {
		order, err := ParseTopOrder(valid)
		require.NoError(t, err)
		assert.Equal(t, TopOrder(valid), order)
	}

	_, err := ParseTopOrder("kills")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestDerivedMetrics(t *testing.T) {
	stats := TopStats{Drops: 500, Ubers: 200, Games: 100, MedicTime: 360000}

	// 360000 seconds is 100 hours of medic time.
	assert.Equal(t, "5.00", stats.DPM())
	assert.Equal(t, "2.50", stats.DPU())
	assert.Equal(t, "5.00", stats.DPG())
}

func TestSearchResultWeight(t *testing.T) {
	assert.Equal(t, 9.5, SearchResult{Sim: 0.9, Count: 5}.Weight())
	assert.Equal(t, 5.75, SearchResult{Sim: 0.95, Count: 1}.Weight())
	assert.Equal(t, 102.5, SearchResult{Sim: 0.5, Count: 100}.Weight())
}

func TestProfileLinks(t *testing.T) {
	id, err := steamid.Parse("[U:1:64229260]")
	require.NoError(t, err)
	stats := PlayerStats{SteamID: id}

	assert.Equal(t, "https://steamcommunity.com/profiles/76561198024494988", stats.SteamLink())
	assert.Equal(t, "http://etf2l.org/search/U:1:64229260", stats.ETF2LLink())
	assert.Equal(t, "http://logs.tf/profile/76561198024494988", stats.LogsLink())
	assert.Equal(t, "http://demos.tf/profiles/76561198024494988", stats.DemosLink())
	assert.Equal(t, "https://www.ugcleague.com/players_page.cfm?player_id=76561198024494988", stats.UGCLink())
	assert.Equal(t, "https://rgl.gg/Public/PlayerProfile.aspx?p=76561198024494988", stats.RGLLink())
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(ErrPlayerNotFound))
	assert.True(t, IsNotFoundError(ErrVanityNotFound))
	assert.False(t, IsNotFoundError(ErrInvalidOrder))
	assert.False(t, IsNotFoundError(nil))
}
