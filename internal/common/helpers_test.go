package common

import (
	"testing"
	"time"
)

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"@alice", "alice"},
		{"  @Alice ", "alice"},
		{"BOB_99", "bob_99"},
		{"@", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeHandle(tt.in); got != tt.want {
			t.Errorf("NormalizeHandle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDayOf(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)

	// 23:30 UTC — это уже 02:30 следующего дня по Москве
	moment := time.Date(2024, 5, 10, 23, 30, 0, 0, time.UTC)
	day := DayOf(moment, msk)

	want := time.Date(2024, 5, 11, 0, 0, 0, 0, msk)
	if !day.Equal(want) {
		t.Errorf("DayOf = %v, want %v", day, want)
	}
}

func TestDayBounds(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	moment := time.Date(2024, 5, 10, 15, 0, 0, 0, msk)

	from, to := DayBounds(moment, msk)
	if !from.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, msk)) {
		t.Errorf("начало дня = %v", from)
	}
	if !to.Equal(time.Date(2024, 5, 11, 0, 0, 0, 0, msk)) {
		t.Errorf("конец дня = %v", to)
	}
	if !moment.After(from) || !moment.Before(to) {
		t.Error("момент должен попадать в собственные границы дня")
	}
}

func TestSameDay(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)

	a := time.Date(2024, 5, 10, 0, 1, 0, 0, msk)
	b := time.Date(2024, 5, 10, 23, 59, 0, 0, msk)
	c := time.Date(2024, 5, 11, 0, 1, 0, 0, msk)

	if !SameDay(a, b, msk) {
		t.Error("a и b — один день")
	}
	if SameDay(b, c, msk) {
		t.Error("b и c — разные дни")
	}
}
