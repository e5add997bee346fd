// Пакет errors — конструкторы стандартных ошибок API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeRemoteRejected    = "REMOTE_REJECTED"
	CodeMisconfigured     = "MISCONFIGURED"
	CodeDiverged          = "REMOTE_LOCAL_DIVERGED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
// RemoteStatus и RemoteBody заполняются, когда PowerDNS-Admin отклонил запрос.
type errorDetail struct {
	Code         string          `json:"code"`
	Message      string          `json:"message"`
	RemoteStatus int             `json:"remote_status,omitempty"`
	RemoteBody   json.RawMessage `json:"remote_body,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	write(w, statusCode, errorDetail{Code: code, Message: message})
}

func write(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// RemoteUnavailable — 502 PowerDNS-Admin недоступен.
func RemoteUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeRemoteUnavailable, message)
}

// RemoteRejected — 502 PowerDNS-Admin отклонил запрос.
// remoteStatus и remoteBody передаются клиенту как есть (body — только JSON).
func RemoteRejected(w http.ResponseWriter, message string, remoteStatus int, remoteBody json.RawMessage) {
	write(w, http.StatusBadGateway, errorDetail{
		Code:         CodeRemoteRejected,
		Message:      message,
		RemoteStatus: remoteStatus,
		RemoteBody:   remoteBody,
	})
}

// Misconfigured — 503 не заданы URL или учётные данные PowerDNS-Admin.
func Misconfigured(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeMisconfigured, message)
}

// Diverged — 500 изменение применено в PowerDNS-Admin, но не сохранено локально.
func Diverged(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeDiverged, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
