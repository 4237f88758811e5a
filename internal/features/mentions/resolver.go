// Package mentions — resolver.go выбирает получателя начисления
// из контекста поста: тело, цитата, цепочка ответов.
package mentions

import (
	"context"
	"strings"
	"time"

	"serotonyl.ru/reputation-scanner/internal/common"
	"serotonyl.ru/reputation-scanner/internal/features/accounts"
)

// Directory — то, что резолверу нужно от справочника аккаунтов.
type Directory interface {
	EnsureAuthor(ctx context.Context, handle string, externalID *int64, followers int64) (*accounts.Account, bool, error)
	EnsureRecipient(ctx context.Context, handle string) (*accounts.Account, bool, error)
}

// Resolver проверяет право поста на начисление и выбирает получателя.
type Resolver struct {
	directory      Directory
	platformHandle string
	cutoff         time.Time
}

// NewResolver создаёт резолвер упоминаний.
func NewResolver(directory Directory, platformHandle string, cutoff time.Time) *Resolver {
	return &Resolver{
		directory:      directory,
		platformHandle: common.NormalizeHandle(platformHandle),
		cutoff:         cutoff,
	}
}

// Resolve проверяет пост и определяет получателя.
//
// Условия допуска (все обязательны):
//   - пост не является репостом;
//   - пост не раньше даты отсечки площадки;
//   - хэндл площадки упомянут в ТЕЛЕ поста (разметка классификатора).
//
// Порядок выбора получателя, побеждает первое совпадение:
//  1. Первое набранное в теле упоминание, кроме хэндла площадки.
//  2. Автор цитируемого поста (для цитат).
//  3. Ведущее упоминание ответа (скорее всего автоподставленный адресат).
//
// Самоначисление отклоняется. Побочный эффект: ленивое создание
// аккаунтов автора и получателя.
func (r *Resolver) Resolve(ctx context.Context, post *Post) (*Resolution, error) {
	if post.IsRepost {
		return &Resolution{Reason: "репост"}, nil
	}
	if post.PostedAt.Before(r.cutoff) {
		return &Resolution{Reason: "раньше даты отсечки"}, nil
	}
	if !r.mentionsPlatformInBody(post) {
		return &Resolution{Reason: "нет явного упоминания площадки"}, nil
	}

	author := common.NormalizeHandle(post.AuthorHandle)
	recipient := r.pickRecipient(post)
	if recipient == "" {
		return &Resolution{Reason: "получатель не определяется"}, nil
	}
	if recipient == author {
		return &Resolution{Reason: "самоначисление"}, nil
	}

	// Ленивое создание аккаунтов: автор со штампом подписчиков и внешнего id,
	// получатель — только по хэндлу.
	created := 0
	acc, authorCreated, err := r.directory.EnsureAuthor(ctx, author, post.AuthorExternalID, post.AuthorFollowers)
	if err != nil {
		return nil, err
	}
	if authorCreated {
		created++
	}
	_, recipientCreated, err := r.directory.EnsureRecipient(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if recipientCreated {
		created++
	}

	return &Resolution{
		Eligible:  true,
		Recipient: recipient,
		Author: &Author{
			Handle:     acc.Handle,
			Multiplier: acc.Multiplier,
			Influencer: acc.Influencer(),
		},
		NewAccounts: created,
	}, nil
}

// mentionsPlatformInBody проверяет, набрал ли автор хэндл площадки сам.
// Упоминания, перенесённые автоподстановкой ответа, не считаются.
func (r *Resolver) mentionsPlatformInBody(post *Post) bool {
	for _, m := range post.Mentions {
		if m.InBody && common.NormalizeHandle(m.Handle) == r.platformHandle {
			return true
		}
	}
	return false
}

// pickRecipient реализует порядок выбора получателя.
func (r *Resolver) pickRecipient(post *Post) string {
	// 1. Первое набранное упоминание, кроме площадки
	for _, m := range post.Mentions {
		if !m.InBody {
			continue
		}
		h := common.NormalizeHandle(m.Handle)
		if h != r.platformHandle {
			return h
		}
	}

	// 2. Автор цитируемого поста
	if post.IsQuote && post.QuotedAuthor != "" {
		return common.NormalizeHandle(post.QuotedAuthor)
	}

	// 3. Ведущее упоминание ответа
	if post.IsReply {
		if h := leadingMention(post.Text); h != "" && h != r.platformHandle {
			return h
		}
	}

	return ""
}

// leadingMention возвращает хэндл, если текст начинается с упоминания.
func leadingMention(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "@") {
		return ""
	}
	rest := text[1:]
	end := strings.IndexFunc(rest, func(c rune) bool {
		return !isHandleRune(c)
	})
	if end == 0 {
		return ""
	}
	if end < 0 {
		end = len(rest)
	}
	return common.NormalizeHandle(rest[:end])
}

func isHandleRune(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		return true
	}
	return false
}
