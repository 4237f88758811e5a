// Package keyword — repository.go выполняет операции с таблицей keywords.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей keywords.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий ключевых слов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetActive возвращает активное слово дня. Если его нет — (nil, nil).
func (r *Repository) GetActive(ctx context.Context) (*Keyword, error) {
	query := `
		SELECT id, word, points, active_on, is_active, created_at
		FROM keywords
		WHERE is_active
	`
	var kw Keyword
	err := r.db.QueryRow(ctx, query).Scan(
		&kw.ID, &kw.Word, &kw.Points, &kw.ActiveOn, &kw.Active, &kw.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения слова дня: %w", err)
	}
	return &kw, nil
}

// Activate делает слово активным, сняв активность с предыдущего.
// Обе операции — одна транзакция: частичный уникальный индекс по is_active
// не допустит двух активных строк даже при гонке активаций.
func (r *Repository) Activate(ctx context.Context, word string, points int64, activeOn time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE keywords SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("ошибка деактивации прежнего слова: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO keywords (word, points, active_on, is_active)
		VALUES ($1, $2, $3, TRUE)
	`, strings.ToLower(word), points, activeOn)
	if err != nil {
		return fmt.Errorf("ошибка активации слова: %w", err)
	}

	return tx.Commit(ctx)
}

// DeactivateStale снимает активность со слова, чей день прошёл.
// Вызывается ежедневной cron-задачей в полночь.
// Возвращает true, если активное слово было снято.
func (r *Repository) DeactivateStale(ctx context.Context, today time.Time) (bool, error) {
	query := `
		UPDATE keywords
		SET is_active = FALSE
		WHERE is_active AND active_on < $1
	`
	tag, err := r.db.Exec(ctx, query, today)
	if err != nil {
		return false, fmt.Errorf("ошибка ротации слова дня: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
