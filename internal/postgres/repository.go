package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drops-stats/drops/internal/config"
	"github.com/drops-stats/drops/internal/domain"
	"github.com/drops-stats/drops/internal/steamid"
)

// minRankedDrops is the activity threshold: players at or below it have
// no row in the precomputed ranked view and are excluded from the rank
// population of the on-the-fly rank computation.
const minRankedDrops = 100

// querier is the slice of pgxpool.Pool the repository uses; tests supply
// a fake.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides PostgreSQL-based access to the stats schema. It is
// stateless per call; the pool is safe for concurrent independent
// queries.
type Repository struct {
	db     querier
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository connects to PostgreSQL and verifies the connection.
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{db: pool, pool: pool, logger: logger}, nil
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// GlobalStats reads the population-wide aggregate counters.
func (r *Repository) GlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	query := `SELECT drops, ubers, games FROM global_stats`
	var stats domain.GlobalStats
	err := r.db.QueryRow(ctx, query).Scan(&stats.Drops, &stats.Ubers, &stats.Games)
	if err != nil {
		return domain.GlobalStats{}, fmt.Errorf("getting global stats: %w", err)
	}
	return stats, nil
}

// TopStats returns the top 25 players sorted by the given metric. The
// order column is selected from a validated enum, never interpolated
// from caller input.
func (r *Repository) TopStats(ctx context.Context, order domain.TopOrder) ([]domain.TopStats, error) {
	var column string
	switch order {
	case domain.TopOrderDrops:
		column = "drops"
	case domain.TopOrderDPS:
		column = "dps"
	case domain.TopOrderDPG:
		column = "dpg"
	case domain.TopOrderDPU:
		column = "dpu"
	default:
		return nil, fmt.Errorf("%q: %w", order, domain.ErrInvalidOrder)
	}

	query := fmt.Sprintf(`
		SELECT steam_id, name, drops, ubers, games, medic_time
		FROM ranked_medic_stats
		ORDER BY %s DESC
		LIMIT 25
	`, column)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting top stats by %s: %w", order, err)
	}
	defer rows.Close()

	var entries []domain.TopStats
	for rows.Next() {
		var entry domain.TopStats
		var id string
		err := rows.Scan(&id, &entry.Name, &entry.Drops, &entry.Ubers, &entry.Games, &entry.MedicTime)
		if err != nil {
			return nil, fmt.Errorf("scanning top stats: %w", err)
		}
		if entry.SteamID, err = steamid.Parse(id); err != nil {
			return nil, fmt.Errorf("decoding steam id %q: %w", id, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading top stats: %w", err)
	}
	return entries, nil
}

// RankedPlayerStats reads a player's stats from the precomputed ranked
// view. Players at or below the activity threshold have no row there and
// get domain.ErrPlayerNotFound; callers fall back to ComputePlayerStats.
func (r *Repository) RankedPlayerStats(ctx context.Context, id steamid.SteamID) (domain.PlayerStats, error) {
	query := `
		SELECT steam_id, name, games, ubers, drops, medic_time,
		       drops_rank, dpu_rank, dps_rank, dpg_rank
		FROM ranked_medic_stats
		WHERE steam_id = $1
	`
	return r.scanPlayerStats(r.db.QueryRow(ctx, query, id.Steam3()), "getting ranked player stats")
}

// ComputePlayerStats joins the player's raw counters with their display
// name and computes each rank live as the count of ranked players whose
// derived metric strictly exceeds the player's, plus one. Equal values
// share a rank.
func (r *Repository) ComputePlayerStats(ctx context.Context, id steamid.SteamID) (domain.PlayerStats, error) {
	query := fmt.Sprintf(`
		SELECT user_names.steam_id, name, games, ubers, drops, medic_time,
		       (SELECT COUNT(*) FROM ranked_medic_stats m2 WHERE m2.drops > medic_stats.drops AND m2.drops > %[1]d) + 1 AS drops_rank,
		       (SELECT COUNT(*) FROM ranked_medic_stats m2 WHERE m2.dpu > medic_stats.dpu AND m2.drops > %[1]d) + 1 AS dpu_rank,
		       (SELECT COUNT(*) FROM ranked_medic_stats m2 WHERE m2.dps > medic_stats.dps AND m2.drops > %[1]d) + 1 AS dps_rank,
		       (SELECT COUNT(*) FROM ranked_medic_stats m2 WHERE m2.dpg > medic_stats.dpg AND m2.drops > %[1]d) + 1 AS dpg_rank
		FROM medic_stats
		INNER JOIN user_names ON user_names.steam_id = medic_stats.steam_id
		WHERE medic_stats.steam_id = $1
	`, minRankedDrops)
	return r.scanPlayerStats(r.db.QueryRow(ctx, query, id.Steam3()), "computing player stats")
}

func (r *Repository) scanPlayerStats(row pgx.Row, op string) (domain.PlayerStats, error) {
	var stats domain.PlayerStats
	var id string
	err := row.Scan(&id, &stats.Name, &stats.Games, &stats.Ubers, &stats.Drops, &stats.MedicTime,
		&stats.DropsRank, &stats.DPURank, &stats.DPSRank, &stats.DPGRank)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PlayerStats{}, domain.ErrPlayerNotFound
		}
		return domain.PlayerStats{}, fmt.Errorf("%s: %w", op, err)
	}
	if stats.SteamID, err = steamid.Parse(id); err != nil {
		return domain.PlayerStats{}, fmt.Errorf("decoding steam id %q: %w", id, err)
	}
	return stats, nil
}

// PlayerName returns the display name recorded for a player, or
// domain.ErrNameNotFound when none is known.
func (r *Repository) PlayerName(ctx context.Context, id steamid.SteamID) (string, error) {
	query := `SELECT name FROM user_names WHERE steam_id = $1`
	var name *string
	err := r.db.QueryRow(ctx, query, id.Steam3()).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNameNotFound
		}
		return "", fmt.Errorf("getting player name: %w", err)
	}
	if name == nil {
		return "", domain.ErrNameNotFound
	}
	return *name, nil
}

// SearchPlayerNames matches the name-history table against the query as
// a case-insensitive regular expression. Each row carries the trigram
// similarity against the query and how often the name was observed.
func (r *Repository) SearchPlayerNames(ctx context.Context, search string) ([]domain.SearchResult, error) {
	query := `
		SELECT steam_id, name, count, (1 - (name <-> $1)) AS sim
		FROM medic_names
		WHERE name ~* $1
		ORDER BY count DESC
		LIMIT 50
	`
	rows, err := r.db.Query(ctx, query, search)
	if err != nil {
		return nil, fmt.Errorf("searching player names: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var result domain.SearchResult
		var id string
		if err := rows.Scan(&id, &result.Name, &result.Count, &result.Sim); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if result.SteamID, err = steamid.Parse(id); err != nil {
			return nil, fmt.Errorf("decoding steam id %q: %w", id, err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return results, nil
}

// VanityMapping looks up a previously resolved vanity token. Stored
// mappings are authoritative and never expire.
func (r *Repository) VanityMapping(ctx context.Context, token string) (steamid.SteamID, error) {
	query := `SELECT steam_id FROM vanity_urls WHERE url = $1`
	var id string
	err := r.db.QueryRow(ctx, query, token).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("getting vanity mapping: %w", err)
	}
	parsed, err := steamid.Parse(id)
	if err != nil {
		return 0, fmt.Errorf("decoding steam id %q: %w", id, err)
	}
	return parsed, nil
}

// SaveVanityMapping persists a resolved vanity token.
func (r *Repository) SaveVanityMapping(ctx context.Context, token string, id steamid.SteamID) error {
	query := `INSERT INTO vanity_urls (url, steam_id) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, token, id.Steam3()); err != nil {
		return fmt.Errorf("saving vanity mapping: %w", err)
	}
	return nil
}
