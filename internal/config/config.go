// Пакет config — загрузка и валидация конфигурации tgupload
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации tgupload.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Разрешённый CORS origin ("*" — любой)
	CORSOrigin string

	// --- Доступ ---

	// Общий секрет для всех запросов (X-API-KEY / Bearer / ?key=)
	APIPassword string

	// --- Telegram ---

	// Токен бота Telegram
	BotToken string
	// Идентификатор чата (канала), в котором хранятся документы
	ChatID string
	// Базовый URL Bot API (переопределяется в тестах)
	TelegramAPIURL string
	// Таймаут HTTP-клиента Bot API
	TelegramTimeout time.Duration
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64

	// --- База данных ---

	// DSN PostgreSQL; пустая строка — встроенная SQLite
	DatabaseURL string
	// Путь к файлу SQLite (используется при пустом DatabaseURL)
	SQLitePath string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера. По умолчанию 30m — должен покрывать
	// полную передачу файла до потолка MaxFileSize по медленному каналу.
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (тот же бюджет, что и чтение)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- Мониторинг зависимостей (topologymetrics) ---

	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics
	DephealthName string
}

// telegramMaxFileSize — потолок размера документа в Telegram (2 GiB).
// Фиксированная внешняя константа, задаёт значение по умолчанию
// и верхнюю границу для TGU_MAX_FILE_SIZE.
const telegramMaxFileSize int64 = 2 << 30

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// TGU_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("TGU_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("TGU_PORT: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("TGU_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// TGU_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TGU_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TGU_LOG_LEVEL: %w", err)
	}

	// TGU_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TGU_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TGU_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// TGU_CORS_ORIGIN — разрешённый origin (по умолчанию "*")
	cfg.CORSOrigin = getEnvDefault("TGU_CORS_ORIGIN", "*")

	// --- Доступ ---

	// TGU_API_PASSWORD — обязательный
	cfg.APIPassword, err = getEnvRequired("TGU_API_PASSWORD")
	if err != nil {
		return nil, err
	}

	// --- Telegram ---

	// TGU_BOT_TOKEN — обязательный
	cfg.BotToken, err = getEnvRequired("TGU_BOT_TOKEN")
	if err != nil {
		return nil, err
	}

	// TGU_CHAT_ID — обязательный
	cfg.ChatID, err = getEnvRequired("TGU_CHAT_ID")
	if err != nil {
		return nil, err
	}

	// TGU_TELEGRAM_API_URL — базовый URL Bot API (по умолчанию официальный)
	cfg.TelegramAPIURL = strings.TrimRight(getEnvDefault("TGU_TELEGRAM_API_URL", "https://api.telegram.org"), "/")

	// TGU_TELEGRAM_TIMEOUT — таймаут Bot API (по умолчанию 300s)
	cfg.TelegramTimeout, err = getEnvDuration("TGU_TELEGRAM_TIMEOUT", 300*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TGU_TELEGRAM_TIMEOUT: %w", err)
	}

	// TGU_MAX_FILE_SIZE — максимальный размер файла (по умолчанию потолок Telegram)
	cfg.MaxFileSize, err = getEnvInt64("TGU_MAX_FILE_SIZE", telegramMaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("TGU_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("TGU_MAX_FILE_SIZE: значение должно быть положительным")
	}
	if cfg.MaxFileSize > telegramMaxFileSize {
		return nil, fmt.Errorf("TGU_MAX_FILE_SIZE: значение %d превышает потолок Telegram %d",
			cfg.MaxFileSize, telegramMaxFileSize)
	}

	// --- База данных ---

	// TGU_DATABASE_URL — DSN PostgreSQL (опционально; пусто — SQLite)
	cfg.DatabaseURL = getEnvDefault("TGU_DATABASE_URL", "")

	// TGU_SQLITE_PATH — путь к файлу SQLite (по умолчанию data/tgupload.db)
	cfg.SQLitePath = getEnvDefault("TGU_SQLITE_PATH", "data/tgupload.db")

	// --- HTTP Server Timeouts ---

	// TGU_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30m, бюджет полной загрузки)
	cfg.HTTPReadTimeout, err = getEnvDuration("TGU_HTTP_READ_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TGU_HTTP_READ_TIMEOUT: %w", err)
	}

	// TGU_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 30m)
	cfg.HTTPWriteTimeout, err = getEnvDuration("TGU_HTTP_WRITE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TGU_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// TGU_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("TGU_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TGU_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	// TGU_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("TGU_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TGU_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// TGU_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("TGU_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TGU_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// TGU_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "tgupload")
	cfg.DephealthGroup = getEnvDefault("TGU_DEPHEALTH_GROUP", "tgupload")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	return cfg, nil
}

// UseSQLite сообщает, выбрана ли встроенная SQLite вместо PostgreSQL.
func (c *Config) UseSQLite() bool {
	return c.DatabaseURL == ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 5m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
