// Package keyword реализует бонус за слово дня — независимый от графа
// упоминаний путь начисления. models.go описывает ротационное ключевое слово.
package keyword

import "time"

// Keyword — слово дня. Активна максимум одна строка одновременно
// (частичный уникальный индекс в БД).
type Keyword struct {
	ID        int64     `db:"id"`
	Word      string    `db:"word"`
	Points    int64     `db:"points"`
	ActiveOn  time.Time `db:"active_on"` // дата активации
	Active    bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}
