// Package ledger — repository.go выполняет операции с таблицей point_entries.
// Конфликт уникальности при вставке — ожидаемый, штатный исход (ON CONFLICT
// DO NOTHING), а парные начисления идут в одной транзакции БД.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей point_entries.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий журнала.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const insertEntrySQL = `
	INSERT INTO point_entries
		(source_handle, recipient_handle, post_id, points, note,
		 influencer_bonus, manual, loyalty_ref, posted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (source_handle, recipient_handle, post_id) DO NOTHING
`

// Insert вставляет одну запись. Возвращает false, если запись с той же
// тройкой уже существует — дубликат молча схлопывается, это не ошибка.
func (r *Repository) Insert(ctx context.Context, e *Entry) (bool, error) {
	tag, err := r.db.Exec(ctx, insertEntrySQL,
		e.SourceHandle, e.RecipientHandle, e.PostID, e.Points, e.Note,
		e.InfluencerBonus, e.Manual, e.LoyaltyRef, e.PostedAt,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка вставки записи журнала: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertPair вставляет запись получателю и парную запись самоначисления
// дарителя в ОДНОЙ транзакции: либо обе операции пройдут, либо ни одной.
// Возвращает, какие из двух записей реально вставились.
func (r *Repository) InsertPair(ctx context.Context, recipient, self *Entry) (recipientInserted, selfInserted bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertEntrySQL,
		recipient.SourceHandle, recipient.RecipientHandle, recipient.PostID,
		recipient.Points, recipient.Note, recipient.InfluencerBonus,
		recipient.Manual, recipient.LoyaltyRef, recipient.PostedAt,
	)
	if err != nil {
		return false, false, fmt.Errorf("ошибка записи начисления: %w", err)
	}
	recipientInserted = tag.RowsAffected() > 0

	tag, err = tx.Exec(ctx, insertEntrySQL,
		self.SourceHandle, self.RecipientHandle, self.PostID,
		self.Points, self.Note, self.InfluencerBonus,
		self.Manual, self.LoyaltyRef, self.PostedAt,
	)
	if err != nil {
		return false, false, fmt.Errorf("ошибка записи самоначисления: %w", err)
	}
	selfInserted = tag.RowsAffected() > 0

	if err := tx.Commit(ctx); err != nil {
		return false, false, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return recipientInserted, selfInserted, nil
}

// SumForRecipient суммирует все очки, полученные аккаунтом.
// Используется агрегатором для самовосстановления кэшированного итога.
func (r *Repository) SumForRecipient(ctx context.Context, handle string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(points), 0)
		FROM point_entries
		WHERE recipient_handle = $1
	`
	var sum int64
	if err := r.db.QueryRow(ctx, query, handle).Scan(&sum); err != nil {
		return 0, fmt.Errorf("ошибка суммирования журнала: %w", err)
	}
	return sum, nil
}

// NoteExistsInWindow проверяет, есть ли запись от source к recipient
// с данным текстом заметки и временем поста в [from, to).
// Это собственная дедупликация бонусного пути — поверх, а не вместо
// уникальной тройки журнала.
func (r *Repository) NoteExistsInWindow(ctx context.Context, source, recipient, note string, from, to time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM point_entries
			WHERE source_handle = $1 AND recipient_handle = $2
			  AND note = $3 AND posted_at >= $4 AND posted_at < $5
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, source, recipient, note, from, to).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка поиска по журналу: %w", err)
	}
	return exists, nil
}

// RecentForRecipient возвращает последние записи аккаунта (операторские команды).
func (r *Repository) RecentForRecipient(ctx context.Context, handle string, limit int) ([]*Entry, error) {
	query := `
		SELECT id, source_handle, recipient_handle, post_id, points, note,
		       influencer_bonus, manual, loyalty_ref, posted_at, created_at
		FROM point_entries
		WHERE recipient_handle = $1
		ORDER BY posted_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.ID, &e.SourceHandle, &e.RecipientHandle, &e.PostID, &e.Points,
			&e.Note, &e.InfluencerBonus, &e.Manual, &e.LoyaltyRef,
			&e.PostedAt, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
