// Package scan — service.go: оркестратор. Гоняет пачки постов через
// резолвер, квоты, журнал, агрегатор и бонусный путь, записывая итог
// прогона. Посты внутри пачки обрабатываются параллельно, пачки —
// строго последовательно; процессных локов нет, вся сериализация —
// на атомарных примитивах хранилища.
package scan

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-scanner/internal/common"
	"serotonyl.ru/reputation-scanner/internal/config"
	"serotonyl.ru/reputation-scanner/internal/features/keyword"
	"serotonyl.ru/reputation-scanner/internal/features/ledger"
	"serotonyl.ru/reputation-scanner/internal/features/mentions"
)

// PostSource — коллаборатор сбора данных: отдаёт нормализованные посты
// за окно времени. Сканер читает последовательность и не изменяет её.
type PostSource interface {
	Fetch(ctx context.Context, since, until time.Time) ([]*mentions.Post, error)
}

// Resolver проверяет пост и выбирает получателя.
type Resolver interface {
	Resolve(ctx context.Context, post *mentions.Post) (*mentions.Resolution, error)
}

// QuotaStore — дневной бюджет начислений.
type QuotaStore interface {
	TryConsume(ctx context.Context, handle string, day time.Time) (bool, error)
	Rollback(ctx context.Context, handle string, day time.Time)
}

// Ledger — парная запись начисления в журнал.
type Ledger interface {
	Award(ctx context.Context, source, recipient, postID string, multiplier int, postedAt time.Time) ([]*ledger.Entry, error)
}

// Aggregator применяет вставленные записи к кэшированным агрегатам.
type Aggregator interface {
	Apply(ctx context.Context, e *ledger.Entry) error
}

// KeywordBonus — независимый бонусный путь по слову дня.
type KeywordBonus interface {
	TryAward(ctx context.Context, post *mentions.Post) (*keyword.Award, error)
}

// RunStore — записи прогонов. Реализуется *Repository.
type RunStore interface {
	Create(ctx context.Context, startedAt time.Time) (int64, error)
	Finish(ctx context.Context, id int64, status string, scanned, failed int, points int64, accountsCreated int, errMsg *string) error
	Last(ctx context.Context) (*Run, error)
}

// Service — оркестратор сканирования.
type Service struct {
	source     PostSource
	resolver   Resolver
	quota      QuotaStore
	ledger     Ledger
	aggregator Aggregator
	bonus      KeywordBonus
	runs       RunStore
	cfg        *config.Config
}

// NewService создаёт оркестратор.
func NewService(source PostSource, resolver Resolver, quota QuotaStore, ledgerService Ledger, aggregator Aggregator, bonus KeywordBonus, runs RunStore, cfg *config.Config) *Service {
	return &Service{
		source:     source,
		resolver:   resolver,
		quota:      quota,
		ledger:     ledgerService,
		aggregator: aggregator,
		bonus:      bonus,
		runs:       runs,
		cfg:        cfg,
	}
}

// Итог одного поста; собирается в отчёт под мьютексом пачки.
type postResult struct {
	points      int64
	newAccounts int
	failed      bool
}

// Run выполняет один прогон по окну [since, until).
//
// Повторный прогон того же окна безопасен — это документированный
// контракт идемпотентности: дедупликацию несёт уникальная тройка журнала
// и условный расход квоты, а не память процесса.
//
// Сбой отдельного поста не прерывает пачку; сбой самого прогона
// (например, отказ коллаборатора сбора) финализирует запись как failed
// и поднимается вызывающему. Уже зафиксированные начисления остаются
// в силе — глобального отката нет.
func (s *Service) Run(ctx context.Context, since, until time.Time) (*Report, error) {
	runID, err := s.runs.Create(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"run_id": runID,
		"since":  since.Format(time.RFC3339),
		"until":  until.Format(time.RFC3339),
	}).Info("Прогон начат")

	posts, err := s.source.Fetch(ctx, since, until)
	if err != nil {
		s.finish(ctx, runID, StatusFailed, &Report{RunID: runID}, err)
		return nil, fmt.Errorf("ошибка получения постов: %w", err)
	}

	report := &Report{RunID: runID}
	var mu sync.Mutex

	batch := s.cfg.ScanBatchSize
	for start := 0; start < len(posts); start += batch {
		end := start + batch
		if end > len(posts) {
			end = len(posts)
		}

		var wg sync.WaitGroup
		for _, post := range posts[start:end] {
			wg.Add(1)
			go func(p *mentions.Post) {
				defer wg.Done()
				res := s.processPost(ctx, p)

				mu.Lock()
				report.PostsScanned++
				report.PointsAwarded += res.points
				report.AccountsCreated += res.newAccounts
				if res.failed {
					report.PostsFailed++
				}
				mu.Unlock()
			}(post)
		}
		wg.Wait()
	}

	s.finish(ctx, runID, StatusCompleted, report, nil)

	log.WithFields(log.Fields{
		"run_id":          runID,
		"posts_scanned":   report.PostsScanned,
		"posts_failed":    report.PostsFailed,
		"points_awarded":  report.PointsAwarded,
		"accounts_created": report.AccountsCreated,
	}).Info("Прогон завершён")

	return report, nil
}

// processPost прогоняет один пост через весь конвейер начисления.
// Паника в глубине конвейера гасится и считается сбоем поста, а не пачки.
func (s *Service) processPost(ctx context.Context, post *mentions.Post) (res postResult) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"post_id": post.ID,
				"panic":   fmt.Sprintf("%v", r),
				"stack":   string(debug.Stack()),
			}).Error("ПАНИКА при обработке поста — восстановлено")
			res.failed = true
		}
	}()

	resolution, err := s.resolver.Resolve(ctx, post)
	if err != nil {
		log.WithError(err).WithField("post_id", post.ID).Error("Ошибка разбора поста")
		res.failed = true
		return res
	}

	if !resolution.Eligible {
		// Пропуск — штатный исход, не ошибка
		log.WithFields(log.Fields{"post_id": post.ID, "reason": resolution.Reason}).
			Debug("Пост пропущен")
		s.tryKeywordBonus(ctx, post, &res)
		return res
	}

	res.newAccounts += resolution.NewAccounts

	// Квота расходуется за день ПОСТА, не за день обработки
	author := resolution.Author.Handle
	day := common.DayOf(post.PostedAt, s.cfg.Location())

	granted, err := s.quota.TryConsume(ctx, author, day)
	if err != nil {
		log.WithError(err).WithField("post_id", post.ID).Error("Ошибка квотного хранилища")
		res.failed = true
		return res
	}
	if !granted {
		// Исчерпанный бюджет — нормальный терминальный исход поста
		log.WithFields(log.Fields{"post_id": post.ID, "author": author}).
			Debug("Квота исчерпана, начисления нет")
		return res
	}

	// Любой сбой после успешного резерва квоты — откат резерва.
	entries, err := s.ledger.Award(ctx, author, resolution.Recipient, post.ID, resolution.Author.Multiplier, post.PostedAt)
	if err != nil {
		log.WithError(err).WithField("post_id", post.ID).Error("Ошибка записи в журнал")
		s.quota.Rollback(ctx, author, day)
		res.failed = true
		return res
	}

	for _, e := range entries {
		if err := s.aggregator.Apply(ctx, e); err != nil {
			log.WithError(err).WithField("post_id", post.ID).Error("Ошибка агрегатора")
			s.quota.Rollback(ctx, author, day)
			res.failed = true
			return res
		}
		res.points += e.Points
	}

	// Бонусный путь: для постов с упоминанием площадки вернёт nil сразу —
	// двойного вознаграждения за один пост не бывает.
	s.tryKeywordBonus(ctx, post, &res)
	return res
}

// tryKeywordBonus прогоняет пост через путь слова дня и учитывает итог.
func (s *Service) tryKeywordBonus(ctx context.Context, post *mentions.Post, res *postResult) {
	award, err := s.bonus.TryAward(ctx, post)
	if err != nil {
		log.WithError(err).WithField("post_id", post.ID).Error("Ошибка бонусного пути")
		res.failed = true
		return
	}
	if award != nil {
		res.points += award.Points
		res.newAccounts += award.NewAccounts
	}
}

// finish финализирует запись прогона; собственный сбой финализации
// только логируется — отчёт важнее записи о нём.
func (s *Service) finish(ctx context.Context, runID int64, status string, report *Report, runErr error) {
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	err := s.runs.Finish(ctx, runID, status,
		report.PostsScanned, report.PostsFailed,
		report.PointsAwarded, report.AccountsCreated, errMsg)
	if err != nil {
		log.WithError(err).WithField("run_id", runID).Error("Не удалось финализировать прогон")
	}
}

// LastRun возвращает последний прогон для операторских команд.
func (s *Service) LastRun(ctx context.Context) (*Run, error) {
	return s.runs.Last(ctx)
}
