// Package ledger — service.go собирает записи журнала.
// Начисление получателю всегда идёт в паре с самоначислением дарителя:
// ровно 1 очко, без множителя, под отдельным слотом уникальности.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Store — то, что сервису нужно от хранилища журнала.
// Реализуется *Repository.
type Store interface {
	Insert(ctx context.Context, e *Entry) (bool, error)
	InsertPair(ctx context.Context, recipient, self *Entry) (bool, bool, error)
	RecentForRecipient(ctx context.Context, handle string, limit int) ([]*Entry, error)
}

// Service управляет журналом начислений.
type Service struct {
	store Store
}

// NewService создаёт сервис журнала.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Award записывает начисление за пост: получателю 1 × множитель автора
// (с флагом инфлюенсер-бонуса при множителе > 1) и парное самоначисление
// дарителю на 1 очко. Обе вставки — одна транзакция БД.
//
// Возвращает реально вставленные записи: при повторной обработке того же
// поста срез пуст, и агрегатор не трогается.
func (s *Service) Award(ctx context.Context, source, recipient, postID string, multiplier int, postedAt time.Time) ([]*Entry, error) {
	points := int64(multiplier)

	recipientEntry := &Entry{
		SourceHandle:    source,
		RecipientHandle: recipient,
		PostID:          postID,
		Points:          points,
		Note:            fmt.Sprintf("упоминание от @%s", source),
		InfluencerBonus: multiplier > 1,
		PostedAt:        postedAt,
	}
	selfEntry := &Entry{
		SourceHandle:    source,
		RecipientHandle: source,
		PostID:          postID + SelfSuffix,
		Points:          1, // самоначисление никогда не умножается
		Note:            fmt.Sprintf("самоначисление за упоминание @%s", recipient),
		PostedAt:        postedAt,
	}

	recipientInserted, selfInserted, err := s.store.InsertPair(ctx, recipientEntry, selfEntry)
	if err != nil {
		return nil, err
	}

	var inserted []*Entry
	if recipientInserted {
		inserted = append(inserted, recipientEntry)
	}
	if selfInserted {
		inserted = append(inserted, selfEntry)
	}
	return inserted, nil
}

// History возвращает последние начисления аккаунта (операторские команды).
func (s *Service) History(ctx context.Context, handle string, limit int) ([]*Entry, error) {
	return s.store.RecentForRecipient(ctx, handle, limit)
}

// AwardBonus записывает одиночное бонусное начисление (слово дня, ручные
// корректировки). Возвращает запись, если она реально вставилась.
func (s *Service) AwardBonus(ctx context.Context, e *Entry) (*Entry, error) {
	inserted, err := s.store.Insert(ctx, e)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	return e, nil
}
