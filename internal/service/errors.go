// errors.go — ошибки бизнес-логики сервисного слоя и их классификация.
package service

import (
	"errors"
	"fmt"

	"github.com/svdleer/pdnsapi-sub000/internal/config"
	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrRemoteUnavailable — PowerDNS-Admin недоступен (транспорт, таймаут).
	ErrRemoteUnavailable = errors.New("PowerDNS-Admin недоступен")
	// ErrRemoteRejected — PowerDNS-Admin отклонил запрос или вернул неожиданный ответ.
	ErrRemoteRejected = errors.New("PowerDNS-Admin отклонил запрос")
	// ErrMisconfigured — не заданы URL или учётные данные PowerDNS-Admin.
	ErrMisconfigured = errors.New("PowerDNS-Admin не настроен")
	// ErrPartialSyncFailure — часть элементов не синхронизирована.
	ErrPartialSyncFailure = model.ErrPartialSync
	// ErrDiverged — изменение применено в PowerDNS-Admin, но не сохранено локально.
	ErrDiverged = errors.New("состояние PowerDNS-Admin и локальной БД разошлось")
)

// classifyRemote относит ошибку клиента PowerDNS-Admin к таксономии сервиса.
// Исходная ошибка остаётся в цепочке: *pdnsadmin.RemoteError доступен через errors.As.
func classifyRemote(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pdnsadmin.ErrMisconfigured), errors.Is(err, config.ErrMisconfigured):
		return fmt.Errorf("%s: %w: %w", op, ErrMisconfigured, err)
	case errors.Is(err, pdnsadmin.ErrUnavailable):
		return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
	case errors.Is(err, pdnsadmin.ErrRejected):
		return fmt.Errorf("%s: %w: %w", op, ErrRemoteRejected, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// classifyStore относит ошибку репозитория к таксономии сервиса.
func classifyStore(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	case errors.Is(err, repository.ErrInvalidReference):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// DivergenceError — удалённая мутация выполнена, локальная запись не удалась.
// Требует ручной сверки или повторной синхронизации.
type DivergenceError struct {
	// Op — операция (create, update, delete)
	Op string
	// Resource — естественный ключ ресурса
	Resource string
	Err      error
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Resource, ErrDiverged, e.Err)
}

func (e *DivergenceError) Unwrap() []error { return []error{ErrDiverged, e.Err} }
