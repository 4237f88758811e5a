// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: периодическое сканирование окна
// постов и полуночная ротация слова дня.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-scanner/internal/config"
	"serotonyl.ru/reputation-scanner/internal/features/keyword"
	"serotonyl.ru/reputation-scanner/internal/features/scan"
	"serotonyl.ru/reputation-scanner/internal/notify"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	scanner  *scan.Service
	keywords *keyword.Service
	notifier *notify.Notifier // может быть nil — уведомления опциональны
	cfg      *config.Config
}

// NewScheduler создаёт планировщик задач в часовом поясе приложения.
func NewScheduler(scanner *scan.Service, keywordService *keyword.Service, notifier *notify.Notifier, cfg *config.Config) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Location()))

	return &Scheduler{
		cron:     c,
		scanner:  scanner,
		keywords: keywordService,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Периодическое сканирование окна постов
	s.cron.AddFunc(s.cfg.ScanCronSpec, func() {
		log.Info("[CRON] Сканирование окна постов")
		s.runScan(ctx)
	})

	// Ротация слова дня в полночь
	s.cron.AddFunc("0 0 * * *", func() {
		log.Info("[CRON] Ротация слова дня")
		if err := s.keywords.RotateStale(ctx, time.Now()); err != nil {
			log.WithError(err).Error("[CRON] Ошибка ротации слова дня")
		}
	})

	s.cron.Start()
	log.Infof("Планировщик задач запущен (%s)", s.cfg.AppTimezone)
}

// runScan выполняет один прогон и уведомляет оператора об итоге.
func (s *Scheduler) runScan(ctx context.Context) {
	until := time.Now()
	since := until.Add(-s.cfg.ScanWindow)

	report, err := s.scanner.Run(ctx, since, until)
	if err != nil {
		log.WithError(err).Error("[CRON] Прогон прерван")
		if s.notifier != nil {
			s.notifier.RunFailed(ctx, err)
		}
		return
	}
	if s.notifier != nil {
		s.notifier.RunCompleted(ctx, report)
	}
}

// Stop останавливает планировщик, дождавшись текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
