// Package quota — repository.go выполняет операции с таблицей daily_quotas.
// Здесь живёт единственная точка, где расходуется бюджет: атомарный
// условный UPDATE. Никаких SELECT-then-UPDATE — сканер работает
// в несколько горутин и может быть запущен в нескольких процессах.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей daily_quotas.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий квот.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Ensure создаёт квотную запись (handle, day), если её ещё нет.
// total и multiplier — снимок конфигурации аккаунта на момент первого
// обращения в этот день. Конкурентные создания схлопываются на ON CONFLICT.
func (r *Repository) Ensure(ctx context.Context, handle string, day time.Time, total, multiplier int) error {
	query := `
		INSERT INTO daily_quotas (handle, quota_day, total, consumed, multiplier)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (handle, quota_day) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, handle, day, total, multiplier)
	if err != nil {
		return fmt.Errorf("ошибка создания квотной записи: %w", err)
	}
	return nil
}

// Consume пытается списать одну единицу бюджета.
// Guard consumed < total внутри UPDATE делает операцию линеаризуемой:
// два конкурентных списания никогда не уведут consumed за total.
// Возвращает false без побочных эффектов, если бюджет исчерпан.
func (r *Repository) Consume(ctx context.Context, handle string, day time.Time) (bool, error) {
	query := `
		UPDATE daily_quotas
		SET consumed = consumed + 1, updated_at = NOW()
		WHERE handle = $1 AND quota_day = $2 AND consumed < total
	`
	tag, err := r.db.Exec(ctx, query, handle, day)
	if err != nil {
		return false, fmt.Errorf("ошибка списания квоты: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Release возвращает одну единицу бюджета (пол — ноль).
// Используется только при откате неудавшегося начисления.
func (r *Repository) Release(ctx context.Context, handle string, day time.Time) error {
	query := `
		UPDATE daily_quotas
		SET consumed = consumed - 1, updated_at = NOW()
		WHERE handle = $1 AND quota_day = $2 AND consumed > 0
	`
	_, err := r.db.Exec(ctx, query, handle, day)
	if err != nil {
		return fmt.Errorf("ошибка отката квоты: %w", err)
	}
	return nil
}

// Get возвращает квотную запись. Если записи нет — (nil, nil):
// отсутствие записи означает нетронутый день, это не ошибка.
func (r *Repository) Get(ctx context.Context, handle string, day time.Time) (*Record, error) {
	query := `
		SELECT id, handle, quota_day, total, consumed, multiplier, created_at, updated_at
		FROM daily_quotas
		WHERE handle = $1 AND quota_day = $2
	`
	var rec Record
	err := r.db.QueryRow(ctx, query, handle, day).Scan(
		&rec.ID, &rec.Handle, &rec.Day, &rec.Total, &rec.Consumed,
		&rec.Multiplier, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения квотной записи: %w", err)
	}
	return &rec, nil
}
