// Package scan — repository.go выполняет операции с таблицей scan_runs.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей scan_runs.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий прогонов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create создаёт запись прогона в статусе running и возвращает её id.
func (r *Repository) Create(ctx context.Context, startedAt time.Time) (int64, error) {
	query := `
		INSERT INTO scan_runs (status, started_at)
		VALUES ($1, $2)
		RETURNING id
	`
	var id int64
	if err := r.db.QueryRow(ctx, query, StatusRunning, startedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("ошибка создания записи прогона: %w", err)
	}
	return id, nil
}

// Finish финализирует прогон: статус, счётчики, текст ошибки (для failed).
func (r *Repository) Finish(ctx context.Context, id int64, status string, scanned, failed int, points int64, accountsCreated int, errMsg *string) error {
	query := `
		UPDATE scan_runs
		SET status = $2, finished_at = NOW(), posts_scanned = $3, posts_failed = $4,
		    points_awarded = $5, accounts_created = $6, error = $7
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, status, scanned, failed, points, accountsCreated, errMsg)
	if err != nil {
		return fmt.Errorf("ошибка финализации прогона: %w", err)
	}
	return nil
}

// Last возвращает последний прогон. Если прогонов ещё не было — (nil, nil).
func (r *Repository) Last(ctx context.Context) (*Run, error) {
	query := `
		SELECT id, status, started_at, finished_at, posts_scanned, posts_failed,
		       points_awarded, accounts_created, error
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT 1
	`
	var run Run
	err := r.db.QueryRow(ctx, query).Scan(
		&run.ID, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.PostsScanned, &run.PostsFailed, &run.PointsAwarded,
		&run.AccountsCreated, &run.Error,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения последнего прогона: %w", err)
	}
	return &run, nil
}
