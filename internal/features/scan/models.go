// Package scan — оркестратор сканирования постов.
// models.go описывает запись одного прогона и его итоговый отчёт.
package scan

import "time"

// Статусы прогона: Running → Completed | Failed.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run — запись одного прогона оркестратора. Чисто наблюдательная:
// логика начислений её никогда не читает.
type Run struct {
	ID              int64      `db:"id"`
	Status          string     `db:"status"`
	StartedAt       time.Time  `db:"started_at"`
	FinishedAt      *time.Time `db:"finished_at"`
	PostsScanned    int        `db:"posts_scanned"`
	PostsFailed     int        `db:"posts_failed"`
	PointsAwarded   int64      `db:"points_awarded"`
	AccountsCreated int        `db:"accounts_created"`
	Error           *string    `db:"error"`
}

// Report — итог прогона для оператора.
// Пропуски отдельных постов оператору не показываются — только счётчики.
type Report struct {
	RunID           int64
	PostsScanned    int
	PostsFailed     int
	PointsAwarded   int64
	AccountsCreated int
}
