package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crashd/database"
	"crashd/domain/entities"
	"crashd/infrastructure/observability"

	"github.com/jackc/pgx/v5"
)

const roundColumns = `
	id, round_number, server_seed, server_seed_hash, client_seed, nonce,
	crash_point, status, created_at, started_at, ended_at`

// RoundRepository implements round data access
type RoundRepository struct {
	q Queryable
}

// NewRoundRepository creates a new round repository over the pool
func NewRoundRepository(db *database.DB) *RoundRepository {
	return &RoundRepository{q: db.Pool}
}

func newRoundRepository(tx Queryable) *RoundRepository {
	return &RoundRepository{q: tx}
}

func scanRound(row pgx.Row) (*entities.Round, error) {
	var r entities.Round
	err := row.Scan(
		&r.ID,
		&r.Number,
		&r.ServerSeed,
		&r.ServerSeedHash,
		&r.ClientSeed,
		&r.Nonce,
		&r.CrashPoint,
		&r.Status,
		&r.CreatedAt,
		&r.StartedAt,
		&r.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a round in betting status and returns it with its monotonic
// number assigned by the database.
func (r *RoundRepository) Create(ctx context.Context, round *entities.Round) (*entities.Round, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("round", "Create")()
	query := `
		INSERT INTO rounds (server_seed, server_seed_hash, client_seed, nonce, crash_point, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, round_number, created_at
	`
	round.Status = entities.RoundStatusBetting
	err := r.q.QueryRow(ctx, query,
		round.ServerSeed,
		round.ServerSeedHash,
		round.ClientSeed,
		round.Nonce,
		round.CrashPoint,
		round.Status,
	).Scan(&round.ID, &round.Number, &round.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}
	return round, nil
}

// GetByID retrieves a round by id
func (r *RoundRepository) GetByID(ctx context.Context, id int64) (*entities.Round, error) {
	query := `SELECT` + roundColumns + ` FROM rounds WHERE id = $1`
	round, err := scanRound(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d: %w", id, err)
	}
	return round, nil
}

// UpdateStatus advances a round's status. startedAt is set on the transition
// to running, endedAt on the transition to crashed.
func (r *RoundRepository) UpdateStatus(ctx context.Context, roundID int64, status entities.RoundStatus, startedAt, endedAt *time.Time) error {
	query := `
		UPDATE rounds SET
			status = $1,
			started_at = COALESCE($2, started_at),
			ended_at = COALESCE($3, ended_at)
		WHERE id = $4
	`
	tag, err := r.q.Exec(ctx, query, status, startedAt, endedAt, roundID)
	if err != nil {
		return fmt.Errorf("failed to update round %d to %s: %w", roundID, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no round %d to update", roundID)
	}
	return nil
}

// GetRecentCrashed returns the most recent crashed rounds, newest first.
func (r *RoundRepository) GetRecentCrashed(ctx context.Context, limit int) ([]*entities.Round, error) {
	query := `SELECT` + roundColumns + ` FROM rounds WHERE status = 'crashed' ORDER BY round_number DESC LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent crashed rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*entities.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// List returns rounds ordered by number, newest first
func (r *RoundRepository) List(ctx context.Context, limit, offset int) ([]*entities.Round, error) {
	query := `SELECT` + roundColumns + ` FROM rounds ORDER BY round_number DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*entities.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// Count returns the total round count
func (r *RoundRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM rounds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rounds: %w", err)
	}
	return count, nil
}
