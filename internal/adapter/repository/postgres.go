package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solhaga/threatlens/internal/core/domain"
)

// PostgresRepository persists assessment runs in the assessments table:
//
//	id UUID PRIMARY KEY, kind TEXT, root_probability DOUBLE PRECISION,
//	trials INTEGER, seed BIGINT, interval_low DOUBLE PRECISION,
//	interval_high DOUBLE PRECISION, created_at TIMESTAMPTZ
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, a domain.Assessment) error {
	query := `
		INSERT INTO assessments (id, kind, root_probability, trials, seed, interval_low, interval_high, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.Kind,
		a.RootProbability,
		a.Trials,
		a.Seed,
		a.IntervalLow,
		a.IntervalHigh,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]domain.Assessment, error) {
	query := `
		SELECT id, kind, root_probability, trials, seed, interval_low, interval_high, created_at
		FROM assessments
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var assessments []domain.Assessment

	for rows.Next() {
		var a domain.Assessment
		err := rows.Scan(
			&a.ID,
			&a.Kind,
			&a.RootProbability,
			&a.Trials,
			&a.Seed,
			&a.IntervalLow,
			&a.IntervalHigh,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		assessments = append(assessments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return assessments, nil
}
