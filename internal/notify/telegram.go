// Package notify — операторский интерфейс через Telegram.
// Сюда приходят итоги прогонов, отсюда же администраторы меняют квоты,
// множители и слово дня. Транспорт начислений это НЕ затрагивает:
// ядро работает и с выключенным Telegram.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-scanner/internal/common"
	"serotonyl.ru/reputation-scanner/internal/config"
	"serotonyl.ru/reputation-scanner/internal/features/accounts"
	"serotonyl.ru/reputation-scanner/internal/features/aggregate"
	"serotonyl.ru/reputation-scanner/internal/features/keyword"
	"serotonyl.ru/reputation-scanner/internal/features/ledger"
	"serotonyl.ru/reputation-scanner/internal/features/quota"
	"serotonyl.ru/reputation-scanner/internal/features/scan"
)

// Notifier отправляет уведомления и обрабатывает админ-команды.
type Notifier struct {
	bot        *telego.Bot
	cfg        *config.Config
	accounts   *accounts.Service
	keywords   *keyword.Service
	reputation *aggregate.Service
	ledger     *ledger.Service
	quotas     *quota.Service
	scanner    *scan.Service
}

// New создаёт нотификатор. Если токен не задан — возвращает (nil, nil):
// операторский интерфейс опционален.
func New(cfg *config.Config, accountService *accounts.Service, keywordService *keyword.Service, reputationService *aggregate.Service, ledgerService *ledger.Service, quotaService *quota.Service, scanService *scan.Service) (*Notifier, error) {
	if cfg.TelegramBotToken == "" {
		log.Info("Telegram не настроен — операторский интерфейс отключён")
		return nil, nil
	}

	bot, err := telego.NewBot(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}

	return &Notifier{
		bot:        bot,
		cfg:        cfg,
		accounts:   accountService,
		keywords:   keywordService,
		reputation: reputationService,
		ledger:     ledgerService,
		quotas:     quotaService,
		scanner:    scanService,
	}, nil
}

// RunCompleted отправляет оператору итог успешного прогона.
func (n *Notifier) RunCompleted(ctx context.Context, r *scan.Report) {
	n.send(ctx, fmt.Sprintf(
		"✅ Прогон #%d завершён\nПостов: %d (сбоев: %d)\nОчков начислено: %d\nНовых аккаунтов: %d",
		r.RunID, r.PostsScanned, r.PostsFailed, r.PointsAwarded, r.AccountsCreated,
	))
}

// RunFailed отправляет оператору сообщение о сбое прогона.
func (n *Notifier) RunFailed(ctx context.Context, err error) {
	n.send(ctx, fmt.Sprintf("❌ Прогон прерван: %v", err))
}

// Start запускает long polling админ-команд. Блокирует до отмены контекста.
func (n *Notifier) Start(ctx context.Context) error {
	updates, err := n.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка запуска long polling: %w", err)
	}

	log.Info("Операторский интерфейс Telegram запущен")
	for update := range updates {
		if update.Message == nil || update.Message.From == nil {
			continue
		}
		n.handleCommand(ctx, update.Message)
	}
	return nil
}

// handleCommand разбирает и выполняет одну команду оператора.
func (n *Notifier) handleCommand(ctx context.Context, msg *telego.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	if !n.isAdmin(msg.From.ID) {
		log.WithField("user_id", msg.From.ID).Warn("Команда от не-администратора")
		return
	}

	args := strings.Fields(text)
	cmd := args[0]
	args = args[1:]

	var reply string
	switch cmd {
	case "/lastrun":
		reply = n.lastRun(ctx)
	case "/top":
		reply = n.top(ctx)
	case "/total":
		reply = n.total(ctx, args)
	case "/summary":
		reply = n.summary(ctx, args)
	case "/history":
		reply = n.history(ctx, args)
	case "/quota":
		reply = n.quotaLeft(ctx, args)
	case "/setquota":
		reply = n.setQuota(ctx, args)
	case "/setmult":
		reply = n.setMultiplier(ctx, args)
	case "/keyword":
		reply = n.setKeyword(ctx, args)
	case "/award":
		reply = n.manualAward(ctx, args)
	default:
		return
	}
	n.send(ctx, reply)
}

func (n *Notifier) lastRun(ctx context.Context) string {
	run, err := n.scanner.LastRun(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if run == nil {
		return "Прогонов ещё не было"
	}
	s := fmt.Sprintf("Прогон #%d [%s]\nНачат: %s\nПостов: %d (сбоев: %d)\nОчков: %d",
		run.ID, run.Status, run.StartedAt.In(n.cfg.Location()).Format("02.01.2006 15:04"),
		run.PostsScanned, run.PostsFailed, run.PointsAwarded)
	if run.Error != nil {
		s += "\nОшибка: " + *run.Error
	}
	return s
}

func (n *Notifier) top(ctx context.Context) string {
	top, err := n.reputation.Top(ctx, 10)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if len(top) == 0 {
		return "Лидерборд пуст"
	}
	var b strings.Builder
	b.WriteString("🏆 Топ по репутации:\n")
	for i, t := range top {
		fmt.Fprintf(&b, "%d. @%s — %d\n", i+1, t.Handle, t.Total)
	}
	return b.String()
}

func (n *Notifier) total(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Использование: /total <handle>"
	}
	total, err := n.reputation.Total(ctx, args[0])
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	return fmt.Sprintf("⭐ @%s: %d очков", args[0], total)
}

// summary: /summary <handle> — окна и множества упоминавших инфлюенсеров.
func (n *Notifier) summary(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Использование: /summary <handle>"
	}
	rep, err := n.reputation.Summary(ctx, common.NormalizeHandle(args[0]))
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if rep == nil {
		return fmt.Sprintf("По @%s агрегатов ещё нет", args[0])
	}
	return fmt.Sprintf(
		"⭐ @%s: %d очков\nОкна: 1д %d / 7д %d / 30д %d / 90д %d\nИнфлюенсеров за 90д: %d",
		rep.Handle, rep.TotalPoints,
		rep.Points1d, rep.Points7d, rep.Points30d, rep.Points90d,
		rep.Endorsers90d.Len(),
	)
}

// history: /history <handle> — последние начисления аккаунта.
func (n *Notifier) history(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Использование: /history <handle>"
	}
	entries, err := n.ledger.History(ctx, common.NormalizeHandle(args[0]), 10)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("У @%s начислений ещё нет", args[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Последние начисления @%s:\n", args[0])
	for _, e := range entries {
		fmt.Fprintf(&b, "%s — %+d от @%s (%s)\n",
			e.PostedAt.In(n.cfg.Location()).Format("02.01"), e.Points, e.SourceHandle, e.Note)
	}
	return b.String()
}

// quotaLeft: /quota <handle> — остаток дневного бюджета на сегодня.
func (n *Notifier) quotaLeft(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Использование: /quota <handle>"
	}
	day := common.DayOf(time.Now(), n.cfg.Location())
	left, err := n.quotas.Remaining(ctx, common.NormalizeHandle(args[0]), day)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if left < 0 {
		return fmt.Sprintf("@%s сегодня ещё не начислял", args[0])
	}
	return fmt.Sprintf("@%s: осталось %d начислений на сегодня", args[0], left)
}

// setQuota: /setquota <пароль> <handle> <n>.
// Вступает в силу со следующего квотного дня — текущий день не трогается.
func (n *Notifier) setQuota(ctx context.Context, args []string) string {
	if len(args) != 3 {
		return "Использование: /setquota <пароль> <handle> <квота>"
	}
	if !verifyArgon2id(args[0], n.cfg.AdminPasswordHash) {
		return "❌ Неверный пароль"
	}
	quota, err := strconv.Atoi(args[2])
	if err != nil {
		return "❌ Квота должна быть числом"
	}
	if err := n.accounts.SetDailyQuota(ctx, args[1], quota); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	return fmt.Sprintf("✅ Квота @%s теперь %d (со следующего дня)", args[1], quota)
}

// setMultiplier: /setmult <пароль> <handle> <m>.
func (n *Notifier) setMultiplier(ctx context.Context, args []string) string {
	if len(args) != 3 {
		return "Использование: /setmult <пароль> <handle> <множитель>"
	}
	if !verifyArgon2id(args[0], n.cfg.AdminPasswordHash) {
		return "❌ Неверный пароль"
	}
	mult, err := strconv.Atoi(args[2])
	if err != nil {
		return "❌ Множитель должен быть числом"
	}
	if err := n.accounts.SetMultiplier(ctx, args[1], mult); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	return fmt.Sprintf("✅ Множитель @%s теперь %d", args[1], mult)
}

// setKeyword: /keyword <пароль> <слово> <очки>. Активируется с сегодняшнего дня.
func (n *Notifier) setKeyword(ctx context.Context, args []string) string {
	if len(args) != 3 {
		return "Использование: /keyword <пароль> <слово> <очки>"
	}
	if !verifyArgon2id(args[0], n.cfg.AdminPasswordHash) {
		return "❌ Неверный пароль"
	}
	points, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || points <= 0 {
		return "❌ Очки должны быть положительным числом"
	}
	if err := n.keywords.SetKeyword(ctx, args[1], points, time.Now()); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	return fmt.Sprintf("✅ Слово дня: «%s» (+%d очков)", strings.ToLower(args[1]), points)
}

// manualAward: /award <пароль> <handle> <очки> [заметка...].
// Ручная корректировка: запись журнала с флагом manual, мимо квот.
func (n *Notifier) manualAward(ctx context.Context, args []string) string {
	if len(args) < 3 {
		return "Использование: /award <пароль> <handle> <очки> [заметка]"
	}
	if !verifyArgon2id(args[0], n.cfg.AdminPasswordHash) {
		return "❌ Неверный пароль"
	}
	points, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || points == 0 {
		return "❌ Очки должны быть ненулевым числом"
	}

	recipient := common.NormalizeHandle(args[1])
	if _, _, err := n.accounts.EnsureRecipient(ctx, recipient); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	now := time.Now()
	entry, err := n.ledger.AwardBonus(ctx, &ledger.Entry{
		SourceHandle:    n.cfg.KeywordSystemHandle,
		RecipientHandle: recipient,
		PostID:          fmt.Sprintf("manual-%d", now.UnixNano()),
		Points:          points,
		Note:            strings.Join(args[3:], " "),
		Manual:          true,
		PostedAt:        now,
	})
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if entry == nil {
		return "❌ Запись не внесена: конфликт идентификатора"
	}
	if err := n.reputation.Apply(ctx, entry); err != nil {
		return fmt.Sprintf("❌ Запись внесена, но агрегаты не обновились: %v", err)
	}
	return fmt.Sprintf("✅ @%s: %+d очков вручную", recipient, points)
}

func (n *Notifier) isAdmin(userID int64) bool {
	for _, id := range n.cfg.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (n *Notifier) send(ctx context.Context, text string) {
	if text == "" {
		return
	}
	_, err := n.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.cfg.OperatorChatID},
		Text:   text,
	})
	if err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения оператору")
	}
}
