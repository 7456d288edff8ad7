// Пакет server — HTTP-сервер tgupload с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на reverse proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/utkarshgupta188/tgupload/internal/api/handlers"
	"github.com/utkarshgupta188/tgupload/internal/api/middleware"
	"github.com/utkarshgupta188/tgupload/internal/config"
)

// Server — HTTP-сервер tgupload.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
//
// Маршруты:
//   - /health/live, /health/ready, /metrics — без авторизации
//   - /api/files — shared secret (X-API-KEY или Bearer)
//   - /api/files/{id}/download — дополнительно принимает ?key=
//     (для ссылок, открываемых браузером напрямую)
func New(cfg *config.Config, logger *slog.Logger, files *handlers.FilesHandler, health *handlers.HealthHandler) *Server {
	auth := middleware.NewAPIKeyAuth(cfg.APIPassword, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.CORSOrigin},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "X-API-KEY", "Content-Type"},
		MaxAge:         300,
	}))

	// Probes и метрики — без авторизации
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	// Файловый API — за shared secret
	router.Route("/api/files", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware())
			r.Post("/", files.UploadFile)
			r.Get("/", files.ListFiles)
			r.Get("/{id}", files.GetFile)
			r.Delete("/{id}", files.DeleteFile)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.MiddlewareWithQueryKey())
			r.Get("/{id}/download", files.DownloadFile)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Handler возвращает корневой handler сервера. Используется в тестах.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
