// Package quota реализует дневной бюджет начислений.
// models.go описывает квотную запись одного аккаунта за один календарный день.
package quota

import "time"

// Record — бюджет (аккаунт, день).
// total снимается с конфигурации аккаунта в момент создания записи,
// поэтому административные изменения квоты действуют только на новые дни.
// Инвариант consumed <= total держит сама БД: расход — это один условный
// UPDATE с guard-ом consumed < total, никакого read-then-write.
type Record struct {
	ID         int64     `db:"id"`
	Handle     string    `db:"handle"`
	Day        time.Time `db:"quota_day"`
	Total      int       `db:"total"`
	Consumed   int       `db:"consumed"`
	Multiplier int       `db:"multiplier"` // снимок множителя на этот день
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
