// Package config загружает конфигурацию сканера из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Platform ---
	// Хэндл площадки в нижнем регистре (без @). Пост засчитывается,
	// только если автор сам упомянул этот хэндл в тексте.
	PlatformHandle string `envconfig:"PLATFORM_HANDLE" default:"serotonyl"`
	// Посты раньше этой даты не участвуют в начислениях (формат 2006-01-02)
	CutoffDateRaw string    `envconfig:"PLATFORM_CUTOFF_DATE" default:"2023-01-01"`
	CutoffDate    time.Time `envconfig:"-"` // заполним вручную

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"scanner"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"reputation"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Awards ---
	// Сколько начислений в день разрешено одному аккаунту (база, без множителя)
	DefaultDailyQuota int `envconfig:"AWARD_DAILY_QUOTA" default:"3"`
	// Множитель по умолчанию для новых аккаунтов. >1 — инфлюенсер.
	DefaultMultiplier int `envconfig:"AWARD_DEFAULT_MULTIPLIER" default:"1"`

	// --- Keyword of the day ---
	// Минимум просмотров поста для бонуса за ключевое слово
	KeywordMinViews int64 `envconfig:"KEYWORD_MIN_VIEWS" default:"1000"`
	// Псевдо-автор, от имени которого идут бонусные начисления
	KeywordSystemHandle string `envconfig:"KEYWORD_SYSTEM_HANDLE" default:"system"`

	// --- Scan ---
	// Размер пачки постов. Внутри пачки посты обрабатываются параллельно,
	// пачки — строго последовательно.
	ScanBatchSize int `envconfig:"SCAN_BATCH_SIZE" default:"100"`
	// Cron-расписание периодического сканирования
	ScanCronSpec string `envconfig:"SCAN_CRON_SPEC" default:"*/15 * * * *"`
	// Окно сканирования назад от текущего момента
	ScanWindow time.Duration `envconfig:"SCAN_WINDOW" default:"1h"`

	// --- Operator (Telegram) ---
	// Токен можно не задавать — тогда уведомления и админ-команды отключены
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	OperatorChatID   int64   `envconfig:"OPERATOR_CHAT_ID"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную

	// --- Admin ---
	// argon2id-хэш пароля для админ-команд (scripts/generate_hash.go)
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location возвращает часовой пояс приложения. Границы календарного дня
// (квоты, дедупликация бонусов) считаются именно в нём.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

func (c *Config) Validate() error {
	if c.PlatformHandle == "" {
		return fmt.Errorf("PLATFORM_HANDLE не задан")
	}
	if c.PlatformHandle != strings.ToLower(c.PlatformHandle) {
		return fmt.Errorf("PLATFORM_HANDLE должен быть в нижнем регистре")
	}
	if c.DefaultDailyQuota <= 0 {
		return fmt.Errorf("AWARD_DAILY_QUOTA должен быть > 0")
	}
	if c.DefaultMultiplier <= 0 {
		return fmt.Errorf("AWARD_DEFAULT_MULTIPLIER должен быть > 0")
	}
	if c.ScanBatchSize <= 0 {
		return fmt.Errorf("SCAN_BATCH_SIZE должен быть > 0")
	}
	if c.KeywordMinViews < 0 {
		return fmt.Errorf("KEYWORD_MIN_VIEWS не может быть отрицательным")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.TelegramBotToken != "" && c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH обязателен при включённом Telegram")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cutoff, err := time.ParseInLocation("2006-01-02", cfg.CutoffDateRaw, cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("PLATFORM_CUTOFF_DATE parse: %w", err)
	}
	cfg.CutoffDate = cutoff

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
