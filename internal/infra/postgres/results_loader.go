package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-lobby-service/internal/domain"
)

// ResultsLoader loads completed quiz result rows (stored as JSONB) from
// Postgres. The table is append-only; one row per completed attempt.
type ResultsLoader struct {
	pool *pgxpool.Pool
}

func NewResultsLoader(pool *pgxpool.Pool) *ResultsLoader {
	return &ResultsLoader{pool: pool}
}

func (l *ResultsLoader) LoadResults(ctx context.Context, sessionID string) ([]domain.QuizResult, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT data FROM quiz_results WHERE session_id=$1 ORDER BY completed_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	defer rows.Close()

	var results []domain.QuizResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var result domain.QuizResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
