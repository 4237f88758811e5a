package mentions

import (
	"context"
	"testing"
	"time"

	"serotonyl.ru/reputation-scanner/internal/features/accounts"
)

// fakeDirectory — справочник аккаунтов в памяти для тестов резолвера.
type fakeDirectory struct {
	known       map[string]*accounts.Account
	ensured     []string
	stampedWith int64 // подписчики, с которыми штамповали автора
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{known: make(map[string]*accounts.Account)}
}

func (d *fakeDirectory) add(handle string, multiplier int) {
	d.known[handle] = &accounts.Account{Handle: handle, Multiplier: multiplier, DailyQuota: 3}
}

func (d *fakeDirectory) ensure(handle string) (*accounts.Account, bool) {
	if a, ok := d.known[handle]; ok {
		return a, false
	}
	a := &accounts.Account{Handle: handle, Multiplier: 1, DailyQuota: 3}
	d.known[handle] = a
	d.ensured = append(d.ensured, handle)
	return a, true
}

func (d *fakeDirectory) EnsureAuthor(_ context.Context, handle string, _ *int64, followers int64) (*accounts.Account, bool, error) {
	d.stampedWith = followers
	a, created := d.ensure(handle)
	return a, created, nil
}

func (d *fakeDirectory) EnsureRecipient(_ context.Context, handle string) (*accounts.Account, bool, error) {
	a, created := d.ensure(handle)
	return a, created, nil
}

var cutoff = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func eligiblePost() *Post {
	return &Post{
		ID:           "p1",
		AuthorHandle: "alice",
		Text:         "спасибо @serotonyl и @bob",
		PostedAt:     cutoff.AddDate(0, 1, 0),
		Mentions: []Mention{
			{Handle: "serotonyl", InBody: true},
			{Handle: "bob", InBody: true},
		},
	}
}

func TestResolveEligible(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, "serotonyl", cutoff)

	res, err := r.Resolve(context.Background(), eligiblePost())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Eligible {
		t.Fatalf("пост должен подходить, причина пропуска: %q", res.Reason)
	}
	if res.Recipient != "bob" {
		t.Errorf("получатель = %q, want bob", res.Recipient)
	}
	if res.Author.Handle != "alice" {
		t.Errorf("автор = %q", res.Author.Handle)
	}
	// Оба аккаунта не были известны — создано два
	if res.NewAccounts != 2 {
		t.Errorf("создано аккаунтов = %d, want 2", res.NewAccounts)
	}
}

func TestResolveIneligible(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Post)
	}{
		{"репост", func(p *Post) { p.IsRepost = true }},
		{"до даты отсечки", func(p *Post) { p.PostedAt = cutoff.AddDate(0, 0, -1) }},
		{"нет упоминания площадки", func(p *Post) {
			p.Mentions = []Mention{{Handle: "bob", InBody: true}}
		}},
		{"площадка только автоподстановкой", func(p *Post) {
			p.Mentions = []Mention{
				{Handle: "serotonyl", InBody: false},
				{Handle: "bob", InBody: true},
			}
		}},
		{"получатель не определяется", func(p *Post) {
			p.Mentions = []Mention{{Handle: "serotonyl", InBody: true}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newFakeDirectory()
			r := NewResolver(dir, "serotonyl", cutoff)

			post := eligiblePost()
			tt.mutate(post)

			res, err := r.Resolve(context.Background(), post)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Eligible {
				t.Error("пост не должен подходить")
			}
			// Пропущенный пост не создаёт аккаунтов
			if len(dir.ensured) != 0 {
				t.Errorf("создано аккаунтов: %v", dir.ensured)
			}
		})
	}
}

func TestResolveNoSelfEndorsement(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, "serotonyl", cutoff)

	post := eligiblePost()
	post.Mentions = []Mention{
		{Handle: "serotonyl", InBody: true},
		{Handle: "Alice", InBody: true}, // сам автор, другой регистр
	}

	res, err := r.Resolve(context.Background(), post)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Eligible {
		t.Error("самоначисление должно отклоняться")
	}
}

func TestResolveQuoteFallback(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, "serotonyl", cutoff)

	post := eligiblePost()
	post.Mentions = []Mention{{Handle: "serotonyl", InBody: true}}
	post.IsQuote = true
	post.QuotedAuthor = "Carol"

	res, err := r.Resolve(context.Background(), post)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Eligible || res.Recipient != "carol" {
		t.Errorf("ожидали получателя carol из цитаты, получили %+v", res)
	}
}

func TestResolveReplyFallback(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, "serotonyl", cutoff)

	post := eligiblePost()
	post.Text = "@dave отличный тред, @serotonyl"
	post.Mentions = []Mention{
		{Handle: "serotonyl", InBody: true},
		{Handle: "dave", InBody: false}, // автоподстановка ответа
	}
	post.IsReply = true

	res, err := r.Resolve(context.Background(), post)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Eligible || res.Recipient != "dave" {
		t.Errorf("ожидали получателя dave из ведущего упоминания, получили %+v", res)
	}
}

func TestResolveBodyMentionBeatsQuote(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, "serotonyl", cutoff)

	// Явное упоминание в теле сильнее цитаты
	post := eligiblePost()
	post.IsQuote = true
	post.QuotedAuthor = "carol"

	res, err := r.Resolve(context.Background(), post)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Recipient != "bob" {
		t.Errorf("получатель = %q, want bob (тело важнее цитаты)", res.Recipient)
	}
}

func TestResolveAuthorAuthority(t *testing.T) {
	dir := newFakeDirectory()
	dir.add("alice", 5) // инфлюенсер
	r := NewResolver(dir, "serotonyl", cutoff)

	res, err := r.Resolve(context.Background(), eligiblePost())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Author.Multiplier != 5 || !res.Author.Influencer {
		t.Errorf("авторитет автора = %+v, want множитель 5 и статус инфлюенсера", res.Author)
	}
	// Автор был известен заранее — создан только получатель
	if res.NewAccounts != 1 {
		t.Errorf("создано аккаунтов = %d, want 1", res.NewAccounts)
	}
}

func TestLeadingMention(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"@bob привет", "bob"},
		{"  @Bob_99, привет", "bob_99"},
		{"привет @bob", ""},
		{"@", ""},
		{"без упоминаний", ""},
	}

	for _, tt := range tests {
		if got := leadingMention(tt.text); got != tt.want {
			t.Errorf("leadingMention(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
