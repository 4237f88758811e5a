// Package aggregate поддерживает кэшированные репутационные агрегаты.
// models.go описывает строку агрегатов одного аккаунта.
package aggregate

import "time"

// Окна скользящих сумм в днях.
var windowDays = [4]int{1, 7, 30, 90}

// Reputation — кэшированные агрегаты одного аккаунта.
// Источник истины — журнал point_entries; эта строка лишь оптимизация
// и при нуле самовосстанавливается пересчётом из журнала.
type Reputation struct {
	ID          int64     `db:"id"`
	Handle      string    `db:"handle"`
	TotalPoints int64     `db:"total_points"`

	// Скользящие суммы по времени ПОСТА
	Points1d  int64 `db:"points_1d"`
	Points7d  int64 `db:"points_7d"`
	Points30d int64 `db:"points_30d"`
	Points90d int64 `db:"points_90d"`

	// Кто из инфлюенсеров упоминал аккаунт в каждом окне
	Endorsers1d  HandleSet `db:"endorsers_1d"`
	Endorsers7d  HandleSet `db:"endorsers_7d"`
	Endorsers30d HandleSet `db:"endorsers_30d"`
	Endorsers90d HandleSet `db:"endorsers_90d"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TopEntry — строка лидерборда по кэшированным итогам.
type TopEntry struct {
	Handle string
	Total  int64
}
