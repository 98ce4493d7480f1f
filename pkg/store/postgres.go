package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// Postgres reads game data from the ingestion database. Workers share the
// pool; pgxpool hands each query its own connection.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the ingestion database.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests and embedding
// applications that manage their own connections).
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetGame(ctx context.Context, gameID string) (*Game, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT game_id, game_date, start_time, duration_seconds, is_complete, home_won
		FROM games WHERE game_id = $1`, gameID)

	var g Game
	var durationSeconds int64
	var homeWon *bool
	err := row.Scan(&g.ID, &g.Date, &g.StartTime, &durationSeconds, &g.Outcome.IsComplete, &homeWon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
		}
		return nil, fmt.Errorf("fetch game %s: %w", gameID, err)
	}

	g.Duration = time.Duration(durationSeconds) * time.Second
	g.Outcome.HomeWon = homeWon
	return &g, nil
}

func (p *Postgres) GetProbabilitySeries(ctx context.Context, gameID string) ([]sim.ProbabilitySnapshot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT ts, home_win_prob
		FROM espn_win_probability
		WHERE game_id = $1
		ORDER BY ts`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch probability series for %s: %w", gameID, err)
	}
	defer rows.Close()

	var snaps []sim.ProbabilitySnapshot
	for rows.Next() {
		var s sim.ProbabilitySnapshot
		if err := rows.Scan(&s.Timestamp, &s.HomeWinProb); err != nil {
			return nil, fmt.Errorf("scan probability row: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (p *Postgres) GetMarketQuotes(ctx context.Context, gameID string) ([]sim.MarketQuote, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT ts, mid_price, bid, ask
		FROM kalshi_quotes
		WHERE game_id = $1
		ORDER BY ts`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch market quotes for %s: %w", gameID, err)
	}
	defer rows.Close()

	var quotes []sim.MarketQuote
	for rows.Next() {
		var q sim.MarketQuote
		if err := rows.Scan(&q.Timestamp, &q.MidPrice, &q.Bid, &q.Ask); err != nil {
			return nil, fmt.Errorf("scan quote row: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
