package pdnsadmin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusUnreachable — синтетический статус ответа при сбое транспорта
// (отказ соединения, DNS, таймаут). Реальный сервер его не возвращает.
const StatusUnreachable = 599

var (
	// ErrUnavailable — сбой транспорта или таймаут.
	ErrUnavailable = errors.New("PowerDNS-Admin недоступен")
	// ErrRejected — PowerDNS-Admin вернул статус вне 2xx.
	ErrRejected = errors.New("PowerDNS-Admin отклонил запрос")
	// ErrUnexpectedPayload — ответ 2xx не соответствует ожидаемой структуре.
	ErrUnexpectedPayload = fmt.Errorf("%w: неожиданный формат ответа", ErrRejected)
	// ErrMisconfigured — нет базового URL или учётных данных нужной поверхности.
	// Обнаруживается до сетевого запроса.
	ErrMisconfigured = errors.New("клиент PowerDNS-Admin не настроен")
)

// RemoteError — ответ PowerDNS-Admin со статусом вне 2xx.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	// Body — тело ответа, если это JSON
	Body json.RawMessage
	// Raw — тело ответа как есть
	Raw []byte
}

func (e *RemoteError) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: статус %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrRejected).
func (e *RemoteError) Unwrap() error { return ErrRejected }

// Message извлекает текст ошибки из тела ответа.
// PowerDNS-Admin использует поля msg или error; PowerDNS — error.
func (e *RemoteError) Message() string {
	if len(e.Body) > 0 {
		var payload struct {
			Msg   string `json:"msg"`
			Error string `json:"error"`
		}
		if json.Unmarshal(e.Body, &payload) == nil {
			if payload.Msg != "" {
				return payload.Msg
			}
			if payload.Error != "" {
				return payload.Error
			}
		}
	}
	const maxRaw = 512
	if len(e.Raw) > maxRaw {
		return string(e.Raw[:maxRaw])
	}
	return string(e.Raw)
}

// IsNotFound сообщает, что PowerDNS-Admin ответил 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}
