// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// tgupload мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (только в режиме
//     Postgres; для встроенного SQLite внешней зависимости нет)
//   - Telegram Bot API — HTTP checker к getMe (critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthParams — параметры мониторинга зависимостей.
type DephealthParams struct {
	// ServiceID — имя вершины графа текущего приложения (e.g. "tgupload")
	ServiceID string
	// Group — имя группы в метриках (TGU_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB из pgxpool через stdlib.OpenDBFromPool();
	// nil в режиме встроенного SQLite
	DB *sql.DB
	// PGConnURL — URL подключения к PostgreSQL (для лейблов, не для подключения)
	PGConnURL string
	// TelegramAPIURL — базовый URL Bot API
	TelegramAPIURL string
	// BotToken — токен бота (health path getMe требует токен)
	BotToken string
	// CheckInterval — интервал проверки зависимостей
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// PostgreSQL проверяется в connection pool mode: через существующий
// *sql.DB (адаптер pgxpool), что отражает реальную способность сервиса
// работать с базой и обнаруживает исчерпание пула.
func NewDephealthService(params DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(params, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus
// registerer. Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(params DephealthParams, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(params, logger, dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(params DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	// getMe — самый дешёвый аутентифицированный вызов Bot API,
	// подтверждает и доступность API, и валидность токена
	tgDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(params.TelegramAPIURL),
		dephealth.WithHTTPHealthPath("/bot" + params.BotToken + "/getMe"),
		dephealth.CheckInterval(params.CheckInterval),
		dephealth.Critical(true),
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP("telegram-api", tgDepOpts...),
	)

	if params.DB != nil {
		pgDepOpts := []dephealth.DependencyOption{
			dephealth.FromURL(params.PGConnURL),
			dephealth.CheckInterval(params.CheckInterval),
			dephealth.Critical(true),
		}
		opts = append(opts,
			dephealth.AddDependency("postgresql", dephealth.TypePostgres,
				pgcheck.New(pgcheck.WithDB(params.DB)), pgDepOpts...),
		)
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(params.ServiceID, params.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
