// handler.go — основной обработчик API, объединяющий доменные обработчики.
// Делегирует запросы в сервисный слой и переводит ошибки сервиса в HTTP-ответы.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/svdleer/pdnsapi-sub000/internal/api/errors"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

// APIHandler — основной обработчик API.
type APIHandler struct {
	health      *HealthHandler
	accounts    *service.AccountService
	domains     *service.DomainService
	assignments *service.AssignmentService
	reconciler  *service.Reconciler
	status      *service.StatusService
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	accounts *service.AccountService,
	domains *service.DomainService,
	assignments *service.AssignmentService,
	reconciler *service.Reconciler,
	status *service.StatusService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:      health,
		accounts:    accounts,
		domains:     domains,
		assignments: assignments,
		reconciler:  reconciler,
		status:      status,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса. Неизвестные поля — ошибка.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("некорректное тело запроса: %w", err)
	}
	return nil
}

// pathID извлекает числовой идентификатор из параметра маршрута.
func pathID(r *http.Request, name string) (int64, error) {
	return parseID(chi.URLParam(r, name), name)
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("некорректный %s: %q", name, raw)
	}
	return id, nil
}

// queryBool читает логический query-параметр. Отсутствие — def.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("некорректный параметр %s: %q", name, raw)
	}
	return v, nil
}

// writeServiceError переводит ошибку сервиса в стандартный ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var remoteErr *pdnsadmin.RemoteError
	switch {
	case errors.Is(err, service.ErrDiverged):
		h.logger.Error("Расхождение PowerDNS-Admin и локальной БД",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.Diverged(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrMisconfigured):
		apierrors.Misconfigured(w, err.Error())
	case errors.Is(err, service.ErrRemoteUnavailable):
		apierrors.RemoteUnavailable(w, err.Error())
	case errors.As(err, &remoteErr):
		apierrors.RemoteRejected(w, err.Error(), remoteErr.StatusCode, remoteErr.Body)
	case errors.Is(err, service.ErrRemoteRejected):
		apierrors.RemoteRejected(w, err.Error(), 0, nil)
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "внутренняя ошибка сервера")
	}
}
