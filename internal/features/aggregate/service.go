// Package aggregate — service.go содержит бизнес-логику агрегатора.
// Агрегатор вызывается РОВНО ОДИН РАЗ на каждую реально вставленную
// запись журнала: точность сумм обеспечивает уникальная тройка журнала,
// а не идемпотентность инкрементов.
package aggregate

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-scanner/internal/features/ledger"
)

// Store — то, что сервису нужно от хранилища агрегатов.
// Реализуется *Repository.
type Store interface {
	Ensure(ctx context.Context, handle string) error
	AddPoints(ctx context.Context, handle string, points int64, in [4]bool) error
	AppendEndorser(ctx context.Context, handle, endorser string, in [4]bool) error
	Get(ctx context.Context, handle string) (*Reputation, error)
	SetTotal(ctx context.Context, handle string, total int64) error
	Top(ctx context.Context, n int) ([]*TopEntry, error)
}

// LedgerSource — доступ к журналу для пересчёта итога.
type LedgerSource interface {
	SumForRecipient(ctx context.Context, handle string) (int64, error)
}

// Service управляет кэшированными агрегатами репутации.
type Service struct {
	store  Store
	ledger LedgerSource
	now    func() time.Time
}

// NewService создаёт сервис агрегатора.
func NewService(store Store, ledgerSource LedgerSource) *Service {
	return &Service{store: store, ledger: ledgerSource, now: time.Now}
}

// Apply применяет одну вставленную запись журнала к агрегатам получателя:
// итог, скользящие окна по времени поста и — для инфлюенсер-начислений —
// множества «кто упоминал» каждого задетого окна.
func (s *Service) Apply(ctx context.Context, e *ledger.Entry) error {
	if err := s.store.Ensure(ctx, e.RecipientHandle); err != nil {
		return err
	}

	in := s.windowsFor(e.PostedAt)
	if err := s.store.AddPoints(ctx, e.RecipientHandle, e.Points, in); err != nil {
		return err
	}

	if e.InfluencerBonus && e.SourceHandle != e.RecipientHandle {
		if err := s.store.AppendEndorser(ctx, e.RecipientHandle, e.SourceHandle, in); err != nil {
			return err
		}
	}
	return nil
}

// Total возвращает итоговую репутацию аккаунта.
//
// Кэшированный итог — оптимизация, не источник истины: если он нулевой
// (строка отсутствует или обнулилась), итог пересчитывается суммой по
// журналу и записывается обратно.
func (s *Service) Total(ctx context.Context, handle string) (int64, error) {
	rep, err := s.store.Get(ctx, handle)
	if err != nil {
		return 0, err
	}
	if rep != nil && rep.TotalPoints != 0 {
		return rep.TotalPoints, nil
	}

	sum, err := s.ledger.SumForRecipient(ctx, handle)
	if err != nil {
		return 0, err
	}
	if sum == 0 {
		return 0, nil
	}

	log.WithFields(log.Fields{"handle": handle, "total": sum}).
		Info("Итог восстановлен пересчётом из журнала")

	if err := s.store.Ensure(ctx, handle); err != nil {
		return sum, err
	}
	if err := s.store.SetTotal(ctx, handle, sum); err != nil {
		return sum, err
	}
	return sum, nil
}

// Summary возвращает полную строку агрегатов (окна и множества).
func (s *Service) Summary(ctx context.Context, handle string) (*Reputation, error) {
	return s.store.Get(ctx, handle)
}

// Top возвращает лидерборд по кэшированным итогам.
// Потребители должны считать его согласованным лишь в конечном счёте:
// идущее сканирование может ещё не отразиться.
func (s *Service) Top(ctx context.Context, n int) ([]*TopEntry, error) {
	return s.store.Top(ctx, n)
}

// windowsFor отмечает окна, в которые попадает время поста.
func (s *Service) windowsFor(postedAt time.Time) [4]bool {
	var in [4]bool
	now := s.now()
	for i, days := range windowDays {
		in[i] = !postedAt.Before(now.AddDate(0, 0, -days))
	}
	return in
}
