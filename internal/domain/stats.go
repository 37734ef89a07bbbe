package domain

import (
	"fmt"

	"github.com/drops-stats/drops/internal/steamid"
)

// TopOrder selects the metric a leaderboard is sorted by.
type TopOrder string

const (
	TopOrderDrops TopOrder = "drops"
	TopOrderDPS   TopOrder = "dps"
	TopOrderDPG   TopOrder = "dpg"
	TopOrderDPU   TopOrder = "dpu"
)

// ParseTopOrder validates a leaderboard order received from a caller.
func ParseTopOrder(s string) (TopOrder, error) {
	switch TopOrder(s) {
	case TopOrderDrops, TopOrderDPS, TopOrderDPG, TopOrderDPU:
		return TopOrder(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidOrder)
}

// GlobalStats holds the population-wide counters.
type GlobalStats struct {
	Drops int64 `json:"drops"`
	Ubers int64 `json:"ubers"`
	Games int64 `json:"games"`
}

// TopStats is a single leaderboard entry. The per-uber, per-game and
// per-time metrics are derived from the counters, never stored.
type TopStats struct {
	SteamID   steamid.SteamID `json:"steam_id"`
	Name      string          `json:"name"`
	Drops     int64           `json:"drops"`
	Ubers     int64           `json:"ubers"`
	Games     int64           `json:"games"`
	MedicTime int64           `json:"medic_time"`
}

// DPM formats drops per hour of medic time.
func (t TopStats) DPM() string {
	return fmt.Sprintf("%.2f", float64(t.Drops)/(float64(t.MedicTime)/3600.0))
}

// DPU formats drops per uber.
func (t TopStats) DPU() string {
	return fmt.Sprintf("%.2f", float64(t.Drops)/float64(t.Ubers))
}

// DPG formats drops per game.
func (t TopStats) DPG() string {
	return fmt.Sprintf("%.2f", float64(t.Drops)/float64(t.Games))
}

// PlayerStats is a player's counters plus their 1-based position among
// all players above the activity threshold, for each ranked metric.
type PlayerStats struct {
	SteamID   steamid.SteamID `json:"steam_id"`
	Name      string          `json:"name"`
	Drops     int64           `json:"drops"`
	Ubers     int64           `json:"ubers"`
	Games     int64           `json:"games"`
	MedicTime int64           `json:"medic_time"`
	DropsRank int64           `json:"drops_rank"`
	DPURank   int64           `json:"dpu_rank"`
	DPSRank   int64           `json:"dps_rank"`
	DPGRank   int64           `json:"dpg_rank"`
}

func (p PlayerStats) DPM() string {
	return fmt.Sprintf("%.2f", float64(p.Drops)/(float64(p.MedicTime)/3600.0))
}

func (p PlayerStats) DPU() string {
	return fmt.Sprintf("%.2f", float64(p.Drops)/float64(p.Ubers))
}

func (p PlayerStats) DPG() string {
	return fmt.Sprintf("%.2f", float64(p.Drops)/float64(p.Games))
}

// Profile links to third-party sites that key players by steam64.

func (p PlayerStats) SteamLink() string {
	return fmt.Sprintf("https://steamcommunity.com/profiles/%d", p.SteamID.Uint64())
}

func (p PlayerStats) ETF2LLink() string {
	return fmt.Sprintf("http://etf2l.org/search/U:1:%d", p.SteamID.AccountID())
}

func (p PlayerStats) UGCLink() string {
	return fmt.Sprintf("https://www.ugcleague.com/players_page.cfm?player_id=%d", p.SteamID.Uint64())
}

func (p PlayerStats) LogsLink() string {
	return fmt.Sprintf("http://logs.tf/profile/%d", p.SteamID.Uint64())
}

func (p PlayerStats) DemosLink() string {
	return fmt.Sprintf("http://demos.tf/profiles/%d", p.SteamID.Uint64())
}

func (p PlayerStats) RGLLink() string {
	return fmt.Sprintf("https://rgl.gg/Public/PlayerProfile.aspx?p=%d", p.SteamID.Uint64())
}
