package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/reputation-scanner/internal/config"
	"serotonyl.ru/reputation-scanner/internal/features/keyword"
	"serotonyl.ru/reputation-scanner/internal/features/ledger"
	"serotonyl.ru/reputation-scanner/internal/features/mentions"
)

type fakeSource struct {
	posts []*mentions.Post
	err   error
}

func (f *fakeSource) Fetch(_ context.Context, _, _ time.Time) ([]*mentions.Post, error) {
	return f.posts, f.err
}

// fakeResolver: пост с непустым Text считается подходящим, получатель —
// первое упоминание. Пустой Text — пропуск.
type fakeResolver struct {
	panicOn string
}

func (f *fakeResolver) Resolve(_ context.Context, post *mentions.Post) (*mentions.Resolution, error) {
	if post.ID == f.panicOn {
		panic("ошибка разбора глубоко в конвейере")
	}
	if len(post.Mentions) == 0 {
		return &mentions.Resolution{Eligible: false, Reason: "нет упоминаний"}, nil
	}
	return &mentions.Resolution{
		Eligible:  true,
		Recipient: post.Mentions[0].Handle,
		Author:    &mentions.Author{Handle: post.AuthorHandle, Multiplier: 1},
	}, nil
}

// fakeQuota — потокобезопасный атомарный расход, как в БД.
type fakeQuota struct {
	mu        sync.Mutex
	total     int
	consumed  map[string]int // ключ: handle|день
	rollbacks int
}

func newFakeQuota(total int) *fakeQuota {
	return &fakeQuota{total: total, consumed: make(map[string]int)}
}

func (f *fakeQuota) key(handle string, day time.Time) string {
	return handle + "|" + day.Format("2006-01-02")
}

func (f *fakeQuota) TryConsume(_ context.Context, handle string, day time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(handle, day)
	if f.consumed[k] >= f.total {
		return false, nil
	}
	f.consumed[k]++
	return true, nil
}

func (f *fakeQuota) Rollback(_ context.Context, handle string, day time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(handle, day)
	if f.consumed[k] > 0 {
		f.consumed[k]--
	}
	f.rollbacks++
}

// fakeAwardLedger — журнал с уникальной тройкой, под мьютексом.
type fakeAwardLedger struct {
	mu      sync.Mutex
	entries map[string]*ledger.Entry
	err     error
}

func newFakeAwardLedger() *fakeAwardLedger {
	return &fakeAwardLedger{entries: make(map[string]*ledger.Entry)}
}

func (f *fakeAwardLedger) Award(_ context.Context, source, recipient, postID string, multiplier int, postedAt time.Time) ([]*ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	var inserted []*ledger.Entry
	pair := []*ledger.Entry{
		{SourceHandle: source, RecipientHandle: recipient, PostID: postID, Points: int64(multiplier), PostedAt: postedAt},
		{SourceHandle: source, RecipientHandle: source, PostID: postID + ledger.SelfSuffix, Points: 1, PostedAt: postedAt},
	}
	for _, e := range pair {
		k := e.SourceHandle + "|" + e.RecipientHandle + "|" + e.PostID
		if _, ok := f.entries[k]; ok {
			continue
		}
		f.entries[k] = e
		inserted = append(inserted, e)
	}
	return inserted, nil
}

type fakeScanAggregator struct {
	mu      sync.Mutex
	applied int
	err     error
}

func (f *fakeScanAggregator) Apply(_ context.Context, _ *ledger.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied++
	return nil
}

type fakeBonus struct {
	mu    sync.Mutex
	tried int
	award *keyword.Award
}

func (f *fakeBonus) TryAward(_ context.Context, _ *mentions.Post) (*keyword.Award, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tried++
	return f.award, nil
}

type fakeRuns struct {
	mu       sync.Mutex
	nextID   int64
	finished map[int64]*Run
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{finished: make(map[int64]*Run)}
}

func (f *fakeRuns) Create(_ context.Context, startedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.finished[f.nextID] = &Run{ID: f.nextID, Status: StatusRunning, StartedAt: startedAt}
	return f.nextID, nil
}

func (f *fakeRuns) Finish(_ context.Context, id int64, status string, scanned, failed int, points int64, accountsCreated int, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.finished[id]
	run.Status = status
	run.PostsScanned = scanned
	run.PostsFailed = failed
	run.PointsAwarded = points
	run.AccountsCreated = accountsCreated
	run.Error = errMsg
	return nil
}

func (f *fakeRuns) Last(_ context.Context) (*Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished[f.nextID], nil
}

type scanFixture struct {
	svc      *Service
	source   *fakeSource
	resolver *fakeResolver
	quota    *fakeQuota
	ledger   *fakeAwardLedger
	agg      *fakeScanAggregator
	bonus    *fakeBonus
	runs     *fakeRuns
}

func newScanFixture(posts []*mentions.Post, quotaTotal int) *scanFixture {
	f := &scanFixture{
		source:   &fakeSource{posts: posts},
		resolver: &fakeResolver{},
		quota:    newFakeQuota(quotaTotal),
		ledger:   newFakeAwardLedger(),
		agg:      &fakeScanAggregator{},
		bonus:    &fakeBonus{},
		runs:     newFakeRuns(),
	}
	cfg := &config.Config{
		PlatformHandle: "serotonyl",
		AppTimezone:    "Europe/Moscow",
		ScanBatchSize:  4, // маленькая пачка, чтобы прогон шёл в несколько заходов
	}
	f.svc = NewService(f.source, f.resolver, f.quota, f.ledger, f.agg, f.bonus, f.runs, cfg)
	return f
}

func eligiblePost(id, author string) *mentions.Post {
	return &mentions.Post{
		ID:           id,
		AuthorHandle: author,
		Text:         "спасибо @serotonyl и @alice",
		Mentions:     []mentions.Mention{{Handle: "alice", InBody: true}},
		PostedAt:     time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func skippedPost(id string) *mentions.Post {
	return &mentions.Post{
		ID:           id,
		AuthorHandle: "bob",
		PostedAt:     time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

var window = func() (time.Time, time.Time) {
	return time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
}

func TestRunReport(t *testing.T) {
	posts := []*mentions.Post{
		eligiblePost("p1", "bob"),
		eligiblePost("p2", "carol"),
		skippedPost("p3"),
	}
	f := newScanFixture(posts, 3)

	since, until := window()
	report, err := f.svc.Run(context.Background(), since, until)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.PostsScanned != 3 || report.PostsFailed != 0 {
		t.Errorf("scanned=%d failed=%d", report.PostsScanned, report.PostsFailed)
	}
	// Два начисления: каждому по паре (1 получателю + 1 самоначисление)
	if report.PointsAwarded != 4 {
		t.Errorf("PointsAwarded = %d, want 4", report.PointsAwarded)
	}
	if f.agg.applied != 4 {
		t.Errorf("агрегатор применён %d раз, want 4", f.agg.applied)
	}

	run := f.runs.finished[report.RunID]
	if run.Status != StatusCompleted {
		t.Errorf("статус прогона = %q", run.Status)
	}
	if run.PointsAwarded != 4 {
		t.Errorf("в записи прогона %d очков", run.PointsAwarded)
	}
}

func TestRunQuotaEnforcedUnderConcurrency(t *testing.T) {
	// 20 подходящих постов одного автора при квоте 3: ровно 3 начисления,
	// сколько бы горутин ни рвались к квоте одновременно.
	const quota = 3
	var posts []*mentions.Post
	for i := 0; i < 20; i++ {
		posts = append(posts, eligiblePost(fmt.Sprintf("p%d", i), "bob"))
	}
	f := newScanFixture(posts, quota)

	since, until := window()
	report, err := f.svc.Run(context.Background(), since, until)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.PostsScanned != 20 || report.PostsFailed != 0 {
		t.Errorf("scanned=%d failed=%d", report.PostsScanned, report.PostsFailed)
	}
	// Пара записей на каждое начисление
	if len(f.ledger.entries) != quota*2 {
		t.Errorf("в журнале %d записей, want %d", len(f.ledger.entries), quota*2)
	}
	if report.PointsAwarded != quota*2 {
		t.Errorf("PointsAwarded = %d, want %d", report.PointsAwarded, quota*2)
	}
}

func TestRunIdempotentRescan(t *testing.T) {
	posts := []*mentions.Post{eligiblePost("p1", "bob")}
	f := newScanFixture(posts, 100)

	since, until := window()
	first, err := f.svc.Run(context.Background(), since, until)
	if err != nil {
		t.Fatalf("первый прогон: %v", err)
	}
	if first.PointsAwarded != 2 {
		t.Fatalf("первый прогон начислил %d", first.PointsAwarded)
	}

	second, err := f.svc.Run(context.Background(), since, until)
	if err != nil {
		t.Fatalf("повторный прогон: %v", err)
	}
	if second.PointsAwarded != 0 {
		t.Errorf("повторный прогон начислил %d очков", second.PointsAwarded)
	}
	if len(f.ledger.entries) != 2 {
		t.Errorf("в журнале %d записей после двух прогонов", len(f.ledger.entries))
	}
	if second.PostsFailed != 0 {
		t.Errorf("повтор не должен считаться сбоем: failed=%d", second.PostsFailed)
	}
}

func TestRunRollsBackQuotaOnLedgerFailure(t *testing.T) {
	posts := []*mentions.Post{eligiblePost("p1", "bob")}
	f := newScanFixture(posts, 3)
	f.ledger.err = errors.New("журнал недоступен")

	since, until := window()
	report, err := f.svc.Run(context.Background(), since, until)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.PostsFailed != 1 {
		t.Errorf("failed=%d, want 1", report.PostsFailed)
	}
	if f.quota.rollbacks != 1 {
		t.Errorf("откатов квоты: %d, want 1", f.quota.rollbacks)
	}
	// Резерв возвращён: расход снова нулевой
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	for k, v := range f.quota.consumed {
		if v != 0 {
			t.Errorf("квота %q осталась израсходованной: %d (день %v)", k, v, day)
		}
	}
}

func TestRunRollsBackQuotaOnAggregatorFailure(t *testing.T) {
	posts := []*mentions.Post{eligiblePost("p1", "bob")}
	f := newScanFixture(posts, 3)
	f.agg.err = errors.New("агрегаты недоступны")

	since, until := window()
	report, err := f.svc.Run(context.Background(), since, until)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PostsFailed != 1 || f.quota.rollbacks != 1 {
		t.Errorf("failed=%d rollbacks=%d", report.PostsFailed, f.quota.rollbacks)
	}
}

func TestRunSourceFailure(t *testing.T) {
	f := newScanFixture(nil, 3)
	f.source.err = errors.New("хранилище постов недоступно")

	since, until := window()
	if _, err := f.svc.Run(context.Background(), since, until); err == nil {
		t.Fatal("сбой источника должен подниматься")
	}

	run := f.runs.finished[1]
	if run.Status != StatusFailed {
		t.Errorf("статус = %q, want failed", run.Status)
	}
	if run.Error == nil || !strings.Contains(*run.Error, "недоступно") {
		t.Error("текст ошибки должен сохраниться в записи прогона")
	}
}

func TestRunSkippedPostGoesToKeywordPath(t *testing.T) {
	posts := []*mentions.Post{skippedPost("p1"), skippedPost("p2")}
	f := newScanFixture(posts, 3)
	f.bonus.award = &keyword.Award{Points: 3}

	since, until := window()
	report, err := f.svc.Run(context.Background(), since, until)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if f.bonus.tried != 2 {
		t.Errorf("бонусный путь вызван %d раз, want 2", f.bonus.tried)
	}
	if report.PointsAwarded != 6 {
		t.Errorf("PointsAwarded = %d, want 6", report.PointsAwarded)
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	posts := []*mentions.Post{eligiblePost("p1", "bob"), eligiblePost("p2", "carol")}
	f := newScanFixture(posts, 3)
	f.resolver.panicOn = "p1"

	since, until := window()
	report, err := f.svc.Run(context.Background(), since, until)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.PostsScanned != 2 || report.PostsFailed != 1 {
		t.Errorf("scanned=%d failed=%d", report.PostsScanned, report.PostsFailed)
	}
	// Второй пост прошёл конвейер несмотря на панику первого
	if report.PointsAwarded != 2 {
		t.Errorf("PointsAwarded = %d, want 2", report.PointsAwarded)
	}
}
