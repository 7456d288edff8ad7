// download.go — сервис proxy download файлов из Telegram.
// Полный pipeline: FileRecord (БД) → свежий URL (getFile) → streaming download.
// URL Telegram ротируются, поэтому разрешение выполняется на каждый запрос.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utkarshgupta188/tgupload/internal/repository"
	"github.com/utkarshgupta188/tgupload/internal/telegram"
)

// Ошибки download service.
var (
	// ErrNotFound — запись отсутствует в БД либо документ более
	// недоступен в Telegram.
	ErrNotFound = errors.New("файл не найден")
	// ErrRemote — внешнее хранилище недоступно или вернуло ошибку.
	ErrRemote = errors.New("ошибка внешнего хранилища")
)

// Prometheus-метрики download.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgu_downloads_total",
		Help: "Общее количество запросов на скачивание (по статусу).",
	}, []string{"status"})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tgu_download_duration_seconds",
		Help:    "Длительность proxy download (от запроса до завершения streaming).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgu_download_bytes_total",
		Help: "Общее количество переданных байт при скачивании.",
	})

	activeDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tgu_active_downloads",
		Help: "Количество активных (in-progress) proxy downloads.",
	})
)

// DownloadService — сервис proxy download файлов из Telegram.
type DownloadService struct {
	repo   repository.FileRepository
	tg     *telegram.Client
	logger *slog.Logger
}

// NewDownloadService создаёт сервис proxy download.
func NewDownloadService(repo repository.FileRepository, tg *telegram.Client, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		repo:   repo,
		tg:     tg,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Download выполняет полный pipeline proxy download файла.
//
// Pipeline:
//  1. Получить FileRecord из БД
//  2. Разрешить file_id в свежий URL (getFile)
//  3. Запросить файл у CDN Telegram (streaming)
//  4. Streaming copy в ResponseWriter с заголовками скачивания
//
// Возвращает ErrNotFound, если записи нет или file_id более не
// разрешается. После отправки заголовков ошибки streaming только
// логируются — клиенту статус уже ушёл.
func (ds *DownloadService) Download(ctx context.Context, w http.ResponseWriter, fileID string) error {
	start := time.Now()
	activeDownloads.Inc()
	defer activeDownloads.Dec()

	// 1. Получить FileRecord
	record, err := ds.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			downloadsTotal.WithLabelValues("not_found").Inc()
			return ErrNotFound
		}
		downloadsTotal.WithLabelValues("db_error").Inc()
		return fmt.Errorf("получение записи файла: %w", err)
	}

	// 2. Разрешить file_id в свежий URL. Неразрешимый file_id означает,
	// что документ недоступен — для клиента это 404.
	fileURL, remoteSize, err := ds.tg.ResolveFileURL(ctx, record.ExternalRef)
	if err != nil {
		if errors.Is(err, telegram.ErrResolve) {
			ds.logger.Warn("file_id более не разрешается Telegram",
				slog.String("file_id", fileID),
				slog.String("external_ref", record.ExternalRef),
			)
			downloadsTotal.WithLabelValues("not_found").Inc()
			return ErrNotFound
		}
		downloadsTotal.WithLabelValues("remote_error").Inc()
		return fmt.Errorf("%w: разрешение URL: %w", ErrRemote, err)
	}

	ds.logger.Debug("URL документа разрешён",
		slog.String("file_id", fileID),
		slog.Int64("remote_size", remoteSize),
	)

	// 3. Запросить файл у CDN (streaming)
	resp, err := ds.tg.FetchFile(ctx, fileURL)
	if err != nil {
		downloadsTotal.WithLabelValues("remote_error").Inc()
		return fmt.Errorf("%w: скачивание файла %s: %w", ErrRemote, fileID, err)
	}
	defer resp.Body.Close()

	// 4. Streaming copy: заголовки скачивания и тело ответа
	ds.writeHeaders(w, resp, record.Name, record.Size)
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		// Заголовки уже отправлены, клиенту статус не изменить — логируем
		ds.logger.Error("Ошибка streaming download",
			slog.String("file_id", fileID),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		downloadsTotal.WithLabelValues("stream_error").Inc()
		return nil
	}

	duration := time.Since(start)
	downloadsTotal.WithLabelValues("success").Inc()
	downloadDuration.Observe(duration.Seconds())
	downloadBytesTotal.Add(float64(written))

	ds.logger.Debug("Download завершён",
		slog.String("file_id", fileID),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
	)

	return nil
}

// writeHeaders выставляет заголовки скачивания. Content-Type берётся из
// ответа CDN, длина — из него же либо из записи метаданных.
func (ds *DownloadService) writeHeaders(w http.ResponseWriter, resp *http.Response, name string, size int64) {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	} else if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": name}))
}
