// Package ledger реализует журнал начислений — источник истины по очкам.
// models.go описывает запись журнала.
package ledger

import "time"

// Суффиксы идентификатора поста. Парная запись самоначисления и бонус
// за слово дня занимают отдельные слоты уникальности при том же посте.
const (
	SelfSuffix    = "#self"
	KeywordSuffix = "#kw"
)

// Entry — одна запись журнала начислений.
//
// Тройка (source_handle, recipient_handle, post_id) уникальна на уровне БД —
// это ЕДИНСТВЕННЫЙ механизм дедупликации. Конкурентные повторные попытки
// начисления за один пост схлопываются в одну строку.
//
// Записи неизменяемы: никаких UPDATE и soft-delete. Исправления — только
// новыми записями.
type Entry struct {
	ID              int64     `db:"id"`
	SourceHandle    string    `db:"source_handle"`
	RecipientHandle string    `db:"recipient_handle"`
	PostID          string    `db:"post_id"`
	Points          int64     `db:"points"`
	Note            string    `db:"note"`
	InfluencerBonus bool      `db:"influencer_bonus"`
	Manual          bool      `db:"manual"`
	LoyaltyRef      *string   `db:"loyalty_ref"` // ссылка на внешнюю программу лояльности
	PostedAt        time.Time `db:"posted_at"`   // время ПОСТА, не обработки
	CreatedAt       time.Time `db:"created_at"`
}
