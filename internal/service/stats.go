// Package service composes the caches, the stats repository and the
// vanity resolver into the operations the HTTP layer calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/drops-stats/drops/internal/cache"
	"github.com/drops-stats/drops/internal/config"
	"github.com/drops-stats/drops/internal/domain"
	"github.com/drops-stats/drops/internal/steam"
	"github.com/drops-stats/drops/internal/steamid"
)

// Repository is the slice of the Postgres repository the service needs.
type Repository interface {
	GlobalStats(ctx context.Context) (domain.GlobalStats, error)
	TopStats(ctx context.Context, order domain.TopOrder) ([]domain.TopStats, error)
	RankedPlayerStats(ctx context.Context, id steamid.SteamID) (domain.PlayerStats, error)
	ComputePlayerStats(ctx context.Context, id steamid.SteamID) (domain.PlayerStats, error)
	PlayerName(ctx context.Context, id steamid.SteamID) (string, error)
	SearchPlayerNames(ctx context.Context, search string) ([]domain.SearchResult, error)
	VanityMapping(ctx context.Context, token string) (steamid.SteamID, error)
	SaveVanityMapping(ctx context.Context, token string, id steamid.SteamID) error
}

// Resolver maps a vanity url to a SteamID via an external service.
// Absence is reported as steam.ErrNoMatch, distinct from faults.
type Resolver interface {
	Resolve(ctx context.Context, name string) (steamid.SteamID, error)
}

// StatsService serves aggregate, leaderboard, per-player and search
// queries, keeping the hot reads in three independently expiring caches.
type StatsService struct {
	repo     Repository
	resolver Resolver
	logger   *slog.Logger

	globalCache *cache.Cache[struct{}, domain.GlobalStats]
	topCache    *cache.Cache[domain.TopOrder, []domain.TopStats]
	playerCache *cache.Cache[steamid.SteamID, domain.PlayerStats]
}

// NewStatsService creates the service. The caches are owned by the
// service and live for the whole process.
func NewStatsService(repo Repository, resolver Resolver, cfg *config.CacheConfig, logger *slog.Logger) *StatsService {
	return &StatsService{
		repo:        repo,
		resolver:    resolver,
		logger:      logger,
		globalCache: cache.New[struct{}, domain.GlobalStats](cacheConfig(cfg.Global)),
		topCache:    cache.New[domain.TopOrder, []domain.TopStats](cacheConfig(cfg.Top)),
		playerCache: cache.New[steamid.SteamID, domain.PlayerStats](cacheConfig(cfg.Player)),
	}
}

func cacheConfig(c config.CacheEntryConfig) cache.Config {
	return cache.Config{TTL: c.TTL, Idle: c.Idle, Capacity: c.Capacity}
}

// GlobalStats returns the population-wide counters.
func (s *StatsService) GlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	return s.globalCache.GetOrCompute(ctx, struct{}{}, func(ctx context.Context) (domain.GlobalStats, error) {
		return s.repo.GlobalStats(ctx)
	})
}

// TopStats returns the top 25 players for the given order. Each order is
// an independent cache key with its own expiry.
func (s *StatsService) TopStats(ctx context.Context, order domain.TopOrder) ([]domain.TopStats, error) {
	return s.topCache.GetOrCompute(ctx, order, func(ctx context.Context) ([]domain.TopStats, error) {
		return s.repo.TopStats(ctx, order)
	})
}

// PlayerStats returns a player's counters and ranks. Players above the
// activity threshold are read from the precomputed ranked view; for the
// rest the ranks are computed live. Only a missing row triggers the
// fallback, store faults propagate.
func (s *StatsService) PlayerStats(ctx context.Context, id steamid.SteamID) (domain.PlayerStats, error) {
	return s.playerCache.GetOrCompute(ctx, id, func(ctx context.Context) (domain.PlayerStats, error) {
		stats, err := s.repo.RankedPlayerStats(ctx, id)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, domain.ErrPlayerNotFound) {
			return domain.PlayerStats{}, err
		}

		s.logger.Debug("player below ranked threshold, computing ranks", "steam_id", id)
		return s.repo.ComputePlayerStats(ctx, id)
	})
}

// Search finds players by name. A query that parses as a SteamID with a
// recorded name short-circuits to a single exact result; otherwise the
// name history is matched fuzzily, weighted, and de-duplicated per
// player. Results are never cached.
func (s *StatsService) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if id, err := steamid.Parse(query); err == nil {
		name, err := s.repo.PlayerName(ctx, id)
		if err == nil {
			return []domain.SearchResult{{SteamID: id, Name: name, Count: 1, Sim: 1}}, nil
		}
		if !errors.Is(err, domain.ErrNameNotFound) {
			return nil, err
		}
	}

	results, err := s.repo.SearchPlayerNames(ctx, query)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Weight() > results[j].Weight()
	})

	seen := make(map[steamid.SteamID]struct{}, len(results))
	deduped := results[:0]
	for _, result := range results {
		if _, ok := seen[result.SteamID]; ok {
			continue
		}
		seen[result.SteamID] = struct{}{}
		deduped = append(deduped, result)
	}
	return deduped, nil
}

// ResolveVanity maps a vanity url token to a SteamID. Resolved mappings
// are persisted and authoritative; tokens the resolver cannot match
// return domain.ErrVanityNotFound and are not persisted, since the name
// may be claimed later.
func (s *StatsService) ResolveVanity(ctx context.Context, token string) (steamid.SteamID, error) {
	id, err := s.repo.VanityMapping(ctx, token)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}

	id, err = s.resolver.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, steam.ErrNoMatch) {
			return 0, domain.ErrVanityNotFound
		}
		return 0, fmt.Errorf("resolving vanity url: %w", err)
	}

	if err := s.repo.SaveVanityMapping(ctx, token, id); err != nil {
		return 0, err
	}
	s.logger.Info("resolved vanity url", "token", token, "steam_id", id)
	return id, nil
}
