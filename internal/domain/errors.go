package domain

import "errors"

// Domain errors
var (
	ErrPlayerNotFound = errors.New("player not found or has no drops")
	ErrNameNotFound   = errors.New("no recorded name for player")
	ErrVanityNotFound = errors.New("vanity url does not resolve to a player")
	ErrInvalidOrder   = errors.New("invalid leaderboard order")
	ErrNotFound       = errors.New("not found")
)

// IsNotFoundError reports whether an error describes an absence rather
// than a fault. Absences map to 404s; everything else is a server error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrNameNotFound) ||
		errors.Is(err, ErrVanityNotFound) ||
		errors.Is(err, ErrNotFound)
}
