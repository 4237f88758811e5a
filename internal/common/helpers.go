// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: нормализация хэндлов и работа с календарными днями.
package common

import (
	"strings"
	"time"
)

// NormalizeHandle приводит хэндл к каноническому виду: нижний регистр,
// без ведущей @ и без окружающих пробелов.
//
// Примеры:
//
//	NormalizeHandle("@Alice ") → "alice"
//	NormalizeHandle("BOB")     → "bob"
func NormalizeHandle(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "@")
	return strings.ToLower(h)
}

// DayOf возвращает календарный день момента t в часовом поясе loc
// (полночь того же дня). Квоты и дедупликация бонусов считаются
// по дню ПОСТА, а не по дню обработки.
func DayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayBounds возвращает границы календарного дня [начало, начало следующего)
// для момента t в часовом поясе loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := DayOf(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// SameDay сообщает, попадают ли два момента в один календарный день loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayOf(a, loc).Equal(DayOf(b, loc))
}
