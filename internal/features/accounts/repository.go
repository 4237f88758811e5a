// Package accounts — repository.go отвечает за все операции с таблицей accounts в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/reputation-scanner/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Ensure создаёт строку аккаунта, если её ещё нет.
// Возвращает true, если строка была создана этим вызовом.
// Конкурентные вызовы для одного хэндла схлопываются на ON CONFLICT.
func (r *Repository) Ensure(ctx context.Context, handle string, multiplier, dailyQuota int) (bool, error) {
	query := `
		INSERT INTO accounts (handle, multiplier, daily_quota)
		VALUES ($1, $2, $3)
		ON CONFLICT (handle) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, handle, multiplier, dailyQuota)
	if err != nil {
		return false, fmt.Errorf("ошибка создания аккаунта: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// StampIdentity обновляет число подписчиков и внешний id аккаунта.
// Внешний id не затирается NULL-ом: COALESCE сохраняет уже известное значение.
func (r *Repository) StampIdentity(ctx context.Context, handle string, externalID *int64, followers int64) error {
	query := `
		UPDATE accounts
		SET followers = $2, external_id = COALESCE($3, external_id), updated_at = NOW()
		WHERE handle = $1
	`
	_, err := r.db.Exec(ctx, query, handle, followers, externalID)
	if err != nil {
		return fmt.Errorf("ошибка обновления аккаунта: %w", err)
	}
	return nil
}

// GetByHandle: если не найден — common.ErrAccountNotFound.
func (r *Repository) GetByHandle(ctx context.Context, handle string) (*Account, error) {
	query := `
		SELECT id, handle, external_id, followers, multiplier, daily_quota, created_at, updated_at
		FROM accounts
		WHERE handle = $1
	`
	var a Account
	err := r.db.QueryRow(ctx, query, handle).Scan(
		&a.ID, &a.Handle, &a.ExternalID, &a.Followers,
		&a.Multiplier, &a.DailyQuota, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("ошибка получения аккаунта %q: %w", handle, err)
	}
	return &a, nil
}

// SetDailyQuota задаёт базовую дневную квоту аккаунта.
// Действует со СЛЕДУЮЩЕЙ созданной квотной записи — уже открытый день не меняется.
func (r *Repository) SetDailyQuota(ctx context.Context, handle string, quota int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET daily_quota = $2, updated_at = NOW() WHERE handle = $1`,
		handle, quota,
	)
	if err != nil {
		return fmt.Errorf("ошибка изменения квоты: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAccountNotFound
	}
	return nil
}

// SetMultiplier задаёт множитель аккаунта (>1 — статус инфлюенсера).
func (r *Repository) SetMultiplier(ctx context.Context, handle string, multiplier int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET multiplier = $2, updated_at = NOW() WHERE handle = $1`,
		handle, multiplier,
	)
	if err != nil {
		return fmt.Errorf("ошибка изменения множителя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAccountNotFound
	}
	return nil
}
