// Package accounts отвечает за справочник аккаунтов площадки.
// models.go описывает структуру строки аккаунта.
package accounts

import "time"

// Account — аккаунт социальной сети, известный системе.
// Создаётся лениво: при первом появлении хэндла как автора или получателя.
// Никогда не удаляется.
type Account struct {
	ID         int64     `db:"id"`
	Handle     string    `db:"handle"` // нормализованный (нижний регистр, без @)
	ExternalID *int64    `db:"external_id"` // числовой id платформы, переживает переименования
	Followers  int64     `db:"followers"`
	Multiplier int       `db:"multiplier"`  // >1 — инфлюенсер
	DailyQuota int       `db:"daily_quota"` // базовая дневная квота начислений
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Influencer сообщает, имеет ли аккаунт привилегированный статус.
func (a *Account) Influencer() bool {
	return a.Multiplier > 1
}
