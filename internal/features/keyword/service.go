// Package keyword — service.go содержит бизнес-логику бонуса за слово дня.
// Путь полностью независим от резолвера упоминаний и прогоняется для
// каждого поста, который НЕ упоминает хэндл площадки.
package keyword

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-scanner/internal/common"
	"serotonyl.ru/reputation-scanner/internal/config"
	"serotonyl.ru/reputation-scanner/internal/features/accounts"
	"serotonyl.ru/reputation-scanner/internal/features/ledger"
	"serotonyl.ru/reputation-scanner/internal/features/mentions"
)

// Store — хранилище ключевых слов. Реализуется *Repository.
type Store interface {
	GetActive(ctx context.Context) (*Keyword, error)
	Activate(ctx context.Context, word string, points int64, activeOn time.Time) error
	DeactivateStale(ctx context.Context, today time.Time) (bool, error)
}

// LedgerSearch — поиск прежних бонусных начислений в журнале.
type LedgerSearch interface {
	NoteExistsInWindow(ctx context.Context, source, recipient, note string, from, to time.Time) (bool, error)
}

// BonusAwarder — запись бонуса в журнал.
type BonusAwarder interface {
	AwardBonus(ctx context.Context, e *ledger.Entry) (*ledger.Entry, error)
}

// Aggregator применяет вставленную запись к агрегатам.
type Aggregator interface {
	Apply(ctx context.Context, e *ledger.Entry) error
}

// Accounts — ленивое создание аккаунта автора.
type Accounts interface {
	EnsureAuthor(ctx context.Context, handle string, externalID *int64, followers int64) (*accounts.Account, bool, error)
}

// Award — результат успешного бонусного начисления.
type Award struct {
	Points      int64
	NewAccounts int
}

// Service управляет бонусом за слово дня.
type Service struct {
	store      Store
	search     LedgerSearch
	awarder    BonusAwarder
	aggregator Aggregator
	accounts   Accounts
	cfg        *config.Config
}

// NewService создаёт сервис слова дня.
func NewService(store Store, search LedgerSearch, awarder BonusAwarder, aggregator Aggregator, accountService Accounts, cfg *config.Config) *Service {
	return &Service{
		store:      store,
		search:     search,
		awarder:    awarder,
		aggregator: aggregator,
		accounts:   accountService,
		cfg:        cfg,
	}
}

// TryAward пытается начислить бонус за слово дня.
//
// Условия (все обязательны):
//   - пост не упоминает хэндл площадки (иначе он идёт путём упоминаний);
//   - есть активное слово дня, и текст его содержит (без учёта регистра);
//   - пост не раньше даты активации слова;
//   - просмотров не меньше порога — малозаметные посты не фармят бонус;
//   - автору ещё не начисляли бонус за ЭТО слово в календарный день поста.
//
// Возвращает nil без ошибки, когда бонус не положен.
func (s *Service) TryAward(ctx context.Context, post *mentions.Post) (*Award, error) {
	if MentionsHandle(post.Text, s.cfg.PlatformHandle) {
		return nil, nil
	}

	kw, err := s.store.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if kw == nil {
		return nil, nil
	}
	if !Qualifies(post, kw, s.cfg.KeywordMinViews) {
		return nil, nil
	}

	author := common.NormalizeHandle(post.AuthorHandle)
	note := BonusNote(kw.Word)

	// Дневная дедупликация бонусного пути: один бонус на автора на слово
	// в календарный день поста. Поверх неё страхует уникальная тройка
	// журнала через суффикс идентификатора поста.
	from, to := common.DayBounds(post.PostedAt, s.cfg.Location())
	exists, err := s.search.NoteExistsInWindow(ctx, s.cfg.KeywordSystemHandle, author, note, from, to)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	_, created, err := s.accounts.EnsureAuthor(ctx, author, post.AuthorExternalID, post.AuthorFollowers)
	if err != nil {
		return nil, err
	}

	entry, err := s.awarder.AwardBonus(ctx, &ledger.Entry{
		SourceHandle:    s.cfg.KeywordSystemHandle,
		RecipientHandle: author,
		PostID:          post.ID + ledger.KeywordSuffix,
		Points:          kw.Points,
		Note:            note,
		PostedAt:        post.PostedAt,
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		// Конкурент успел вставить ту же запись — бонус уже учтён
		return nil, nil
	}

	if err := s.aggregator.Apply(ctx, entry); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"author": author,
		"word":   kw.Word,
		"points": kw.Points,
	}).Info("Бонус за слово дня начислен")

	award := &Award{Points: entry.Points}
	if created {
		award.NewAccounts = 1
	}
	return award, nil
}

// SetKeyword активирует новое слово дня (административная операция).
// activeOn — полночь дня активации в поясе приложения.
func (s *Service) SetKeyword(ctx context.Context, word string, points int64, activeOn time.Time) error {
	return s.store.Activate(ctx, word, points, common.DayOf(activeOn, s.cfg.Location()))
}

// Active возвращает текущее слово дня (nil, если его нет).
func (s *Service) Active(ctx context.Context) (*Keyword, error) {
	return s.store.GetActive(ctx)
}

// RotateStale снимает активность со слова, чей день прошёл.
// Вызывается cron-задачей в полночь пояса приложения.
func (s *Service) RotateStale(ctx context.Context, now time.Time) error {
	rotated, err := s.store.DeactivateStale(ctx, common.DayOf(now, s.cfg.Location()))
	if err != nil {
		return err
	}
	if rotated {
		log.Info("Слово дня деактивировано: день прошёл")
	}
	return nil
}
