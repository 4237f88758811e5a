// Package quota — service.go содержит бизнес-логику квотного хранилища.
package quota

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-scanner/internal/features/accounts"
)

// Store — то, что сервису нужно от квотного хранилища.
// Реализуется *Repository.
type Store interface {
	Ensure(ctx context.Context, handle string, day time.Time, total, multiplier int) error
	Consume(ctx context.Context, handle string, day time.Time) (bool, error)
	Release(ctx context.Context, handle string, day time.Time) error
	Get(ctx context.Context, handle string, day time.Time) (*Record, error)
}

// Accounts — доступ к конфигурации аккаунта для снимка бюджета.
type Accounts interface {
	Get(ctx context.Context, handle string) (*accounts.Account, error)
}

// Service управляет дневными бюджетами начислений.
type Service struct {
	repo     Store
	accounts Accounts
}

// NewService создаёт сервис квот.
func NewService(repo Store, accountService Accounts) *Service {
	return &Service{repo: repo, accounts: accountService}
}

// TryConsume резервирует одну единицу дневного бюджета автора.
//
// Алгоритм:
//  1. Если квотной записи (handle, day) нет — создаём, снимая снимок
//     с ТЕКУЩЕЙ конфигурации аккаунта: total = daily_quota × multiplier.
//  2. Один атомарный условный UPDATE: consumed++ только при consumed < total.
//
// Возвращает false, когда бюджет исчерпан — это нормальный исход, не ошибка.
func (s *Service) TryConsume(ctx context.Context, handle string, day time.Time) (bool, error) {
	a, err := s.accounts.Get(ctx, handle)
	if err != nil {
		return false, err
	}

	total := a.DailyQuota * a.Multiplier
	if err := s.repo.Ensure(ctx, handle, day, total, a.Multiplier); err != nil {
		return false, err
	}

	return s.repo.Consume(ctx, handle, day)
}

// Rollback возвращает одну единицу бюджета после неудавшегося начисления.
// Best-effort: собственную ошибку логируем и не поднимаем выше — утечка
// одной единицы квоты безопаснее, чем прерывание пачки.
func (s *Service) Rollback(ctx context.Context, handle string, day time.Time) {
	if err := s.repo.Release(ctx, handle, day); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"handle": handle,
			"day":    day.Format("2006-01-02"),
		}).Error("Откат квоты не удался")
	}
}

// Remaining возвращает остаток бюджета на день (для операторских команд).
// Если день ещё не тронут — (-1, nil): запись появится при первом начислении.
func (s *Service) Remaining(ctx context.Context, handle string, day time.Time) (int, error) {
	rec, err := s.repo.Get(ctx, handle, day)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return -1, nil
	}
	return rec.Total - rec.Consumed, nil
}
