// auth.go — middleware проверки общего секрета (Access Guard).
// Секрет принимается в заголовке X-API-KEY, в Authorization: Bearer,
// а для download-маршрута дополнительно в query-параметре ?key=
// (прямые ссылки на скачивание). Проверка stateless, без сессий,
// выполняется на каждом запросе до любых побочных эффектов.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/utkarshgupta188/tgupload/internal/api/errors"
)

// APIKeyAuth — middleware аутентификации по общему секрету.
type APIKeyAuth struct {
	secret string
	logger *slog.Logger
}

// NewAPIKeyAuth создаёт middleware аутентификации.
// secret — значение TGU_API_PASSWORD.
func NewAPIKeyAuth(secret string, logger *slog.Logger) *APIKeyAuth {
	return &APIKeyAuth{
		secret: secret,
		logger: logger.With(slog.String("component", "api_key_auth")),
	}
}

// Middleware возвращает HTTP middleware, принимающий секрет из
// заголовков X-API-KEY и Authorization: Bearer.
func (a *APIKeyAuth) Middleware() func(http.Handler) http.Handler {
	return a.middleware(false)
}

// MiddlewareWithQueryKey возвращает HTTP middleware, дополнительно
// принимающий секрет из query-параметра ?key=. Используется только
// на download-маршруте.
func (a *APIKeyAuth) MiddlewareWithQueryKey() func(http.Handler) http.Handler {
	return a.middleware(true)
}

func (a *APIKeyAuth) middleware(allowQueryKey bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.authenticate(r, allowQueryKey) {
				next.ServeHTTP(w, r)
				return
			}

			a.logger.Debug("Запрос отклонён: неверный или отсутствующий секрет",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			apierrors.Unauthorized(w, "Неверный или отсутствующий API-ключ")
		})
	}
}

// authenticate проверяет все допустимые источники секрета.
func (a *APIKeyAuth) authenticate(r *http.Request, allowQueryKey bool) bool {
	// X-API-KEY
	if key := r.Header.Get("X-API-KEY"); key != "" && a.equal(key) {
		return true
	}

	// Authorization: Bearer <secret>
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && a.equal(parts[1]) {
			return true
		}
	}

	// ?key= — только там, где разрешено явно
	if allowQueryKey {
		if key := r.URL.Query().Get("key"); key != "" && a.equal(key) {
			return true
		}
	}

	return false
}

// equal сравнивает предъявленный секрет с настроенным за константное время.
func (a *APIKeyAuth) equal(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.secret)) == 1
}
