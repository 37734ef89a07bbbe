// Package steamid implements parsing and formatting of Steam account
// identifiers across the three notations players use: the legacy textual
// form ("STEAM_1:0:32114630"), the steam3 form ("[U:1:64229260]") and the
// 64-bit profile id ("76561198024494988").
package steamid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// steam64Base is the 64-bit id of the individual account with account
// number 0 (universe 1, type individual, instance desktop). Valid profile
// ids are steam64Base plus a 32-bit account number.
const steam64Base uint64 = 76561197960265728

var (
	ErrInvalidFormat = errors.New("invalid steam id format")
	ErrOutOfRange    = errors.New("steam account id out of range")
)

// SteamID is a canonical player identifier. Two SteamIDs are the same
// player exactly when they are equal, so the type can be used directly as
// a map or cache key. The zero value is not a valid id.
type SteamID uint64

// Parse decodes any of the three supported notations. Inputs that match
// none of them fail with ErrInvalidFormat; inputs that match a notation
// but encode an account number outside the 32-bit account space fail with
// ErrOutOfRange.
func Parse(s string) (SteamID, error) {
	switch {
	case strings.HasPrefix(s, "STEAM_"):
		return parseSteam2(s)
	case strings.HasPrefix(s, "[U:1:") && strings.HasSuffix(s, "]"):
		return parseSteam3(s)
	default:
		return parseSteam64(s)
	}
}

func parseSteam2(s string) (SteamID, error) {
	parts := strings.Split(strings.TrimPrefix(s, "STEAM_"), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("parsing %q: %w", s, ErrInvalidFormat)
	}
	if _, err := strconv.ParseUint(parts[0], 10, 8); err != nil {
		return 0, fmt.Errorf("parsing %q: %w", s, ErrInvalidFormat)
	}
	low, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || low > 1 {
		return 0, fmt.Errorf("parsing %q: %w", s, ErrInvalidFormat)
	}
	half, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		if isDecimal(parts[2]) {
			return 0, fmt.Errorf("parsing %q: %w", s, ErrOutOfRange)
		}
		return 0, fmt.Errorf("parsing %q: %w", s, ErrInvalidFormat)
	}
	if half > (math.MaxUint32-low)/2 {
		return 0, fmt.Errorf("parsing %q: %w", s, ErrOutOfRange)
	}
	return FromAccountID(uint32(half*2 + low)), nil
}

func parseSteam3(s string) (SteamID, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(s, "[U:1:"), "]")
	account, err := strconv.ParseUint(body, 10, 64)
	if err != nil {
		if isDecimal(body) {
			return 0, fmt.Errorf("parsing %q: %w", s, ErrOutOfRange)
		}
		return 0, fmt.Errorf("parsing %q: %w", s, ErrInvalidFormat)
	}
	if account > math.MaxUint32 {
		return 0, fmt.Errorf("parsing %q: %w", s, ErrOutOfRange)
	}
	return FromAccountID(uint32(account)), nil
}

func parseSteam64(s string) (SteamID, error) {
	if !isDecimal(s) {
		return 0, fmt.Errorf("parsing %q: %w", s, ErrInvalidFormat)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v < steam64Base || v-steam64Base > math.MaxUint32 {
		return 0, fmt.Errorf("parsing %q: %w", s, ErrOutOfRange)
	}
	return SteamID(v), nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// FromUint64 converts a raw 64-bit profile id. It is total: no validation
// is performed, matching Uint64 as an exact inverse.
func FromUint64(v uint64) SteamID {
	return SteamID(v)
}

// FromAccountID builds an individual-account id from its 32-bit account
// number.
func FromAccountID(account uint32) SteamID {
	return SteamID(steam64Base + uint64(account))
}

// Uint64 returns the 64-bit profile id used by third-party sites.
func (s SteamID) Uint64() uint64 {
	return uint64(s)
}

// AccountID returns the 32-bit account number.
func (s SteamID) AccountID() uint32 {
	return uint32(uint64(s) - steam64Base)
}

// Steam3 returns the canonical bracketed form, e.g. "[U:1:64229260]".
// This is the representation stored as primary key in the database.
func (s SteamID) Steam3() string {
	return fmt.Sprintf("[U:1:%d]", s.AccountID())
}

// Steam2 returns the legacy form, e.g. "STEAM_1:0:32114630".
func (s SteamID) Steam2() string {
	account := s.AccountID()
	return fmt.Sprintf("STEAM_1:%d:%d", account&1, account>>1)
}

func (s SteamID) String() string {
	return s.Steam3()
}

// MarshalText renders the canonical steam3 form, so JSON payloads carry
// "[U:1:...]" rather than a 17-digit integer.
func (s SteamID) MarshalText() ([]byte, error) {
	return []byte(s.Steam3()), nil
}

func (s *SteamID) UnmarshalText(text []byte) error {
	id, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = id
	return nil
}
