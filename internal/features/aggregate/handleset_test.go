package aggregate

import "testing"

func TestParseHandleSet(t *testing.T) {
	tests := []struct {
		in      string
		wantLen int
	}{
		{"", 0},
		{"alice", 1},
		{"alice,bob,carol", 3},
		{"alice,alice", 1},          // дубликаты схлопываются
		{"Alice, @bob ,", 2},        // мусор и регистр нормализуются
		{",,,", 0},
	}

	for _, tt := range tests {
		set := ParseHandleSet(tt.in)
		if set.Len() != tt.wantLen {
			t.Errorf("ParseHandleSet(%q).Len() = %d, want %d", tt.in, set.Len(), tt.wantLen)
		}
	}
}

func TestHandleSetRoundTrip(t *testing.T) {
	set := ParseHandleSet("carol,alice,bob")

	// Каноничный вид: сортировка, запятые
	if got := set.String(); got != "alice,bob,carol" {
		t.Errorf("String() = %q", got)
	}
	back := ParseHandleSet(set.String())
	if back.Len() != 3 || !back.Contains("carol") {
		t.Error("сериализация должна быть обратимой")
	}
}

func TestHandleSetAdd(t *testing.T) {
	set := ParseHandleSet("alice")

	if !set.Add("bob") {
		t.Error("новый хэндл должен добавляться")
	}
	if set.Add("Bob") {
		t.Error("повторное добавление не меняет множество")
	}
	if set.Add("") {
		t.Error("пустой хэндл не добавляется")
	}
	if set.Len() != 2 {
		t.Errorf("Len = %d, want 2", set.Len())
	}
}

func TestHandleSetContains(t *testing.T) {
	set := ParseHandleSet("alice,bob")

	if !set.Contains("@Alice") {
		t.Error("Contains должен нормализовать аргумент")
	}
	if set.Contains("carol") {
		t.Error("carol нет в множестве")
	}
}
