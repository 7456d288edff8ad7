// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utkarshgupta188/tgupload/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// StorageReadinessChecker — проверка готовности хранилища метаданных.
type StorageReadinessChecker interface {
	CheckReady() (status string, message string)
}

// HealthHandler реализует health endpoints: /health/live, /health/ready, /metrics.
type HealthHandler struct {
	version string
	storage StorageReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(storage StorageReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		storage: storage,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "tgupload",
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет доступность хранилища метаданных. Telegram намеренно не
// проверяется: его недоступность не должна выводить pod из ротации,
// она отражается в метриках dephealth.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	storageStatus, storageMessage := h.storage.CheckReady()
	if storageStatus != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "tgupload",
		"checks": map[string]any{
			"storage": map[string]string{
				"status":  storageStatus,
				"message": storageMessage,
			},
		},
	}
	writeJSON(w, httpStatus, resp)
}

// GetMetrics обрабатывает GET /metrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
