package keyword

import (
	"context"
	"testing"
	"time"

	"serotonyl.ru/reputation-scanner/internal/config"
	"serotonyl.ru/reputation-scanner/internal/features/accounts"
	"serotonyl.ru/reputation-scanner/internal/features/ledger"
	"serotonyl.ru/reputation-scanner/internal/features/mentions"
)

type fakeKeywordStore struct {
	active *Keyword
}

func (f *fakeKeywordStore) GetActive(_ context.Context) (*Keyword, error) { return f.active, nil }
func (f *fakeKeywordStore) Activate(_ context.Context, word string, points int64, activeOn time.Time) error {
	f.active = &Keyword{Word: word, Points: points, ActiveOn: activeOn, Active: true}
	return nil
}
func (f *fakeKeywordStore) DeactivateStale(_ context.Context, _ time.Time) (bool, error) {
	return false, nil
}

type fakeSearch struct {
	seen map[string]bool // ключ: recipient|note
}

func (f *fakeSearch) NoteExistsInWindow(_ context.Context, _, recipient, note string, _, _ time.Time) (bool, error) {
	return f.seen[recipient+"|"+note], nil
}

type fakeAwarder struct {
	awarded []*ledger.Entry
}

func (f *fakeAwarder) AwardBonus(_ context.Context, e *ledger.Entry) (*ledger.Entry, error) {
	f.awarded = append(f.awarded, e)
	return e, nil
}

type fakeAggregator struct {
	applied []*ledger.Entry
}

func (f *fakeAggregator) Apply(_ context.Context, e *ledger.Entry) error {
	f.applied = append(f.applied, e)
	return nil
}

type fakeAccounts struct {
	known map[string]bool
}

func (f *fakeAccounts) EnsureAuthor(_ context.Context, handle string, _ *int64, _ int64) (*accounts.Account, bool, error) {
	created := !f.known[handle]
	f.known[handle] = true
	return &accounts.Account{Handle: handle, Multiplier: 1, DailyQuota: 3}, created, nil
}

func testConfig() *config.Config {
	return &config.Config{
		PlatformHandle:      "serotonyl",
		AppTimezone:         "Europe/Moscow",
		KeywordMinViews:     1000,
		KeywordSystemHandle: "system",
	}
}

type fixture struct {
	svc     *Service
	store   *fakeKeywordStore
	search  *fakeSearch
	awarder *fakeAwarder
	agg     *fakeAggregator
	accs    *fakeAccounts
}

func newFixture(active *Keyword) *fixture {
	f := &fixture{
		store:   &fakeKeywordStore{active: active},
		search:  &fakeSearch{seen: make(map[string]bool)},
		awarder: &fakeAwarder{},
		agg:     &fakeAggregator{},
		accs:    &fakeAccounts{known: make(map[string]bool)},
	}
	f.svc = NewService(f.store, f.search, f.awarder, f.agg, f.accs, testConfig())
	return f
}

func qualifyingPost() *mentions.Post {
	return &mentions.Post{
		ID:           "post-1",
		AuthorHandle: "alice",
		Text:         "какое сегодня солнце",
		PostedAt:     time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
		Views:        5000,
	}
}

func activeWord() *Keyword {
	return &Keyword{
		Word:     "солнце",
		Points:   3,
		ActiveOn: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Active:   true,
	}
}

func TestTryAwardSuccess(t *testing.T) {
	f := newFixture(activeWord())

	award, err := f.svc.TryAward(context.Background(), qualifyingPost())
	if err != nil {
		t.Fatalf("TryAward: %v", err)
	}
	if award == nil {
		t.Fatal("бонус должен начислиться")
	}
	if award.Points != 3 {
		t.Errorf("Points = %d, want 3", award.Points)
	}
	if award.NewAccounts != 1 {
		t.Errorf("NewAccounts = %d: автора ещё не было", award.NewAccounts)
	}

	if len(f.awarder.awarded) != 1 {
		t.Fatalf("в журнал вставлено %d записей", len(f.awarder.awarded))
	}
	entry := f.awarder.awarded[0]
	if entry.SourceHandle != "system" || entry.RecipientHandle != "alice" {
		t.Errorf("запись: source=%q recipient=%q", entry.SourceHandle, entry.RecipientHandle)
	}
	if entry.PostID != "post-1"+ledger.KeywordSuffix {
		t.Errorf("PostID = %q: бонус держит отдельный слот уникальности", entry.PostID)
	}
	if len(f.agg.applied) != 1 {
		t.Error("агрегатор должен получить вставленную запись")
	}
}

func TestTryAwardSkipsPlatformMentions(t *testing.T) {
	f := newFixture(activeWord())

	post := qualifyingPost()
	post.Text = "солнце и спасибо @serotonyl"

	award, err := f.svc.TryAward(context.Background(), post)
	if err != nil {
		t.Fatalf("TryAward: %v", err)
	}
	if award != nil {
		t.Error("пост с упоминанием площадки идёт путём упоминаний, не бонусным")
	}
	if len(f.awarder.awarded) != 0 {
		t.Error("журнал не должен трогаться")
	}
}

func TestTryAwardNoActiveWord(t *testing.T) {
	f := newFixture(nil)

	award, err := f.svc.TryAward(context.Background(), qualifyingPost())
	if err != nil {
		t.Fatalf("TryAward: %v", err)
	}
	if award != nil {
		t.Error("без активного слова бонуса нет")
	}
}

func TestTryAwardDailyDedup(t *testing.T) {
	f := newFixture(activeWord())
	f.search.seen["alice|"+BonusNote("солнце")] = true

	award, err := f.svc.TryAward(context.Background(), qualifyingPost())
	if err != nil {
		t.Fatalf("TryAward: %v", err)
	}
	if award != nil {
		t.Error("второй бонус автору за то же слово в тот же день не положен")
	}
	if len(f.awarder.awarded) != 0 {
		t.Error("журнал не должен трогаться")
	}
}

func TestTryAwardNotQualifying(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *mentions.Post)
	}{
		{"слова нет в тексте", func(p *mentions.Post) { p.Text = "пасмурно" }},
		{"пост раньше активации", func(p *mentions.Post) { p.PostedAt = p.PostedAt.AddDate(0, 0, -2) }},
		{"мало просмотров", func(p *mentions.Post) { p.Views = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(activeWord())
			post := qualifyingPost()
			tt.mutate(post)

			award, err := f.svc.TryAward(context.Background(), post)
			if err != nil {
				t.Fatalf("TryAward: %v", err)
			}
			if award != nil {
				t.Error("бонус не положен")
			}
		})
	}
}

func TestSetKeywordNormalizesActiveOn(t *testing.T) {
	f := newFixture(nil)

	// Середина дня по UTC: активация должна лечь на полночь пояса приложения
	at := time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)
	if err := f.svc.SetKeyword(context.Background(), "Солнце", 3, at); err != nil {
		t.Fatalf("SetKeyword: %v", err)
	}

	kw := f.store.active
	if kw == nil {
		t.Fatal("слово не активировано")
	}
	if kw.ActiveOn.Hour() != 0 || kw.ActiveOn.Minute() != 0 {
		t.Errorf("ActiveOn = %v, want полночь", kw.ActiveOn)
	}
}
