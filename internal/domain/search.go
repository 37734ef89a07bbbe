package domain

import "github.com/drops-stats/drops/internal/steamid"

// SearchResult is a fuzzy name-search candidate. Sim is the trigram
// similarity between the recorded name and the query, in [0, 1]. Count
// is how often the name was observed for that player.
type SearchResult struct {
	SteamID steamid.SteamID `json:"steam_id"`
	Name    string          `json:"name"`
	Count   int64           `json:"count"`
	Sim     float64         `json:"sim"`
}

// Weight orders candidates: similarity is weighted five times as heavy
// as raw occurrence count, so close matches beat frequently seen loose
// ones.
func (r SearchResult) Weight() float64 {
	return r.Sim*5 + float64(r.Count)
}
