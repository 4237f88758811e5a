// Package accounts — service.go содержит бизнес-логику работы с аккаунтами:
// ленивое создание и административные переопределения квоты/множителя.
package accounts

import (
	"context"

	"serotonyl.ru/reputation-scanner/internal/common"
	"serotonyl.ru/reputation-scanner/internal/config"
)

// Service управляет аккаунтами.
type Service struct {
	repo *Repository
	cfg  *config.Config
}

// NewService создаёт сервис аккаунтов.
func NewService(repo *Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// EnsureAuthor лениво создаёт аккаунт автора поста и штампует его
// актуальными подписчиками и внешним id (если известен).
// Возвращает аккаунт и признак «строка создана только что».
func (s *Service) EnsureAuthor(ctx context.Context, handle string, externalID *int64, followers int64) (*Account, bool, error) {
	handle = common.NormalizeHandle(handle)

	created, err := s.repo.Ensure(ctx, handle, s.cfg.DefaultMultiplier, s.cfg.DefaultDailyQuota)
	if err != nil {
		return nil, false, err
	}
	if err := s.repo.StampIdentity(ctx, handle, externalID, followers); err != nil {
		return nil, created, err
	}

	a, err := s.repo.GetByHandle(ctx, handle)
	if err != nil {
		return nil, created, err
	}
	return a, created, nil
}

// EnsureRecipient лениво создаёт аккаунт получателя начисления.
// Про получателя мы знаем только хэндл — подписчики не штампуются.
func (s *Service) EnsureRecipient(ctx context.Context, handle string) (*Account, bool, error) {
	handle = common.NormalizeHandle(handle)

	created, err := s.repo.Ensure(ctx, handle, s.cfg.DefaultMultiplier, s.cfg.DefaultDailyQuota)
	if err != nil {
		return nil, false, err
	}
	a, err := s.repo.GetByHandle(ctx, handle)
	if err != nil {
		return nil, created, err
	}
	return a, created, nil
}

// Get возвращает аккаунт по хэндлу.
func (s *Service) Get(ctx context.Context, handle string) (*Account, error) {
	return s.repo.GetByHandle(ctx, common.NormalizeHandle(handle))
}

// SetDailyQuota — административное переопределение квоты.
// Вступает в силу при создании квотной записи следующего дня.
func (s *Service) SetDailyQuota(ctx context.Context, handle string, quota int) error {
	if quota <= 0 {
		return common.ErrInvalidQuota
	}
	return s.repo.SetDailyQuota(ctx, common.NormalizeHandle(handle), quota)
}

// SetMultiplier — административное переопределение множителя.
func (s *Service) SetMultiplier(ctx context.Context, handle string, multiplier int) error {
	if multiplier <= 0 {
		return common.ErrInvalidMultiplier
	}
	return s.repo.SetMultiplier(ctx, common.NormalizeHandle(handle), multiplier)
}
