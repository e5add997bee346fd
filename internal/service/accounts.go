// accounts.go — управление аккаунтами: сначала PowerDNS-Admin, затем локальная БД.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

// AccountInput — данные для создания аккаунта.
type AccountInput struct {
	Name        string
	Description string
	Contact     string
	Mail        string
	IPAddresses []string
}

// AccountPatch — частичное изменение аккаунта. nil — поле не меняется.
type AccountPatch struct {
	// Name допускается только равным текущему: имя неизменяемо
	Name        *string
	Description *string
	Contact     *string
	Mail        *string
	IPAddresses *[]string
}

// SyncOutcome — итог автосинхронизации после мутации.
// Ошибка синхронизации не отменяет саму мутацию.
type SyncOutcome struct {
	Result *model.SyncResult
	Err    error
}

// AccountService — бизнес-логика аккаунтов.
type AccountService struct {
	remote     Directory
	store      repository.Store
	reconciler *Reconciler
	autoSync   bool
	logger     *slog.Logger
}

// NewAccountService создаёт сервис аккаунтов.
func NewAccountService(
	remote Directory,
	store repository.Store,
	reconciler *Reconciler,
	autoSync bool,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		remote:     remote,
		store:      store,
		reconciler: reconciler,
		autoSync:   autoSync,
		logger:     logger.With(slog.String("component", "account_service")),
	}
}

// List возвращает локальные аккаунты, упорядоченные по имени.
func (s *AccountService) List(ctx context.Context) ([]*model.Account, error) {
	accounts, err := s.store.Accounts().List(ctx)
	if err != nil {
		return nil, classifyStore("список аккаунтов", err)
	}
	return accounts, nil
}

// Get возвращает аккаунт по локальному id.
func (s *AccountService) Get(ctx context.Context, id int64) (*model.Account, error) {
	acc, err := s.store.Accounts().GetByID(ctx, id)
	if err != nil {
		return nil, classifyStore(fmt.Sprintf("аккаунт %d", id), err)
	}
	return acc, nil
}

// GetByName возвращает аккаунт по имени.
func (s *AccountService) GetByName(ctx context.Context, name string) (*model.Account, error) {
	name = strings.TrimSpace(name)
	acc, err := s.store.Accounts().GetByName(ctx, name)
	if err != nil {
		return nil, classifyStore(fmt.Sprintf("аккаунт %q", name), err)
	}
	return acc, nil
}

// Create создаёт аккаунт в PowerDNS-Admin, затем локально.
// Отказ PowerDNS-Admin не оставляет локальных записей.
// Сбой локальной записи после успеха в PowerDNS-Admin — *DivergenceError.
func (s *AccountService) Create(ctx context.Context, input AccountInput) (*model.Account, *SyncOutcome, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateAccountName(name); err != nil {
		return nil, nil, err
	}
	ips, err := normalizeIPs(input.IPAddresses)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.store.Accounts().GetByName(ctx, name); err == nil {
		return nil, nil, fmt.Errorf("%w: аккаунт %q уже существует", ErrConflict, name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, classifyStore("проверка аккаунта", err)
	}

	remote, err := s.remote.CreateAccount(ctx, pdnsadmin.AccountInput{
		Name:        name,
		Description: input.Description,
		Contact:     input.Contact,
		Mail:        input.Mail,
	})
	if err != nil {
		return nil, nil, classifyRemote("создание аккаунта в PowerDNS-Admin", err)
	}

	acc := accountFromRemote(*remote)
	acc.Name = name
	acc.IPAddresses = ips
	err = s.store.RunInTx(ctx, func(tx repository.Store) error {
		existing, created, err := createOrGetAccount(ctx, tx, acc)
		if err != nil || created {
			return err
		}
		// Аккаунт успела записать параллельная синхронизация
		existing.Description = acc.Description
		existing.Contact = acc.Contact
		existing.Mail = acc.Mail
		existing.RemoteAccountID = acc.RemoteAccountID
		existing.IPAddresses = ips
		if err := tx.Accounts().Update(ctx, existing); err != nil {
			return err
		}
		acc = existing
		return nil
	})
	if err != nil {
		s.logger.Error("Аккаунт создан в PowerDNS-Admin, но не сохранён локально",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, nil, &DivergenceError{Op: "create", Resource: "account " + name, Err: err}
	}

	s.logger.Info("Аккаунт создан",
		slog.String("name", name),
		slog.Int64("id", acc.ID),
	)
	return acc, s.syncAccounts(ctx), nil
}

// Update изменяет аккаунт. Описание, контакт и почта сначала меняются
// в PowerDNS-Admin; IP-адреса хранятся только локально.
func (s *AccountService) Update(ctx context.Context, id int64, patch AccountPatch) (*model.Account, *SyncOutcome, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) != acc.Name {
		return nil, nil, fmt.Errorf("%w: имя аккаунта нельзя изменить", ErrValidation)
	}

	updated := *acc
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Contact != nil {
		updated.Contact = *patch.Contact
	}
	if patch.Mail != nil {
		updated.Mail = *patch.Mail
	}
	if patch.IPAddresses != nil {
		ips, err := normalizeIPs(*patch.IPAddresses)
		if err != nil {
			return nil, nil, err
		}
		updated.IPAddresses = ips
	}

	remoteChanged := updated.Description != acc.Description ||
		updated.Contact != acc.Contact ||
		updated.Mail != acc.Mail

	if remoteChanged {
		remoteID, err := s.remoteAccountID(ctx, acc)
		if err != nil {
			return nil, nil, err
		}
		if remoteID == nil {
			return nil, nil, fmt.Errorf("%w: аккаунт %q отсутствует в PowerDNS-Admin", ErrNotFound, acc.Name)
		}
		err = s.remote.UpdateAccount(ctx, *remoteID, pdnsadmin.AccountInput{
			Name:        acc.Name,
			Description: updated.Description,
			Contact:     updated.Contact,
			Mail:        updated.Mail,
		})
		if err != nil {
			return nil, nil, classifyRemote("изменение аккаунта в PowerDNS-Admin", err)
		}
		updated.RemoteAccountID = remoteID
	}

	if err := s.store.Accounts().Update(ctx, &updated); err != nil {
		if !remoteChanged {
			return nil, nil, classifyStore("изменение аккаунта", err)
		}
		s.logger.Error("Аккаунт изменён в PowerDNS-Admin, но не сохранён локально",
			slog.String("name", acc.Name),
			slog.String("error", err.Error()),
		)
		return nil, nil, &DivergenceError{Op: "update", Resource: "account " + acc.Name, Err: err}
	}

	s.logger.Info("Аккаунт изменён",
		slog.String("name", acc.Name),
		slog.Bool("remote", remoteChanged),
	)

	var synced *SyncOutcome
	if remoteChanged {
		synced = s.syncAccounts(ctx)
	}
	return &updated, synced, nil
}

// Delete удаляет аккаунт из PowerDNS-Admin, затем локально.
// Отсутствие аккаунта в PowerDNS-Admin не мешает локальному удалению.
// Связи аккаунта удаляются каскадно, домены теряют владельца.
func (s *AccountService) Delete(ctx context.Context, id int64) (*SyncOutcome, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	remoteID, err := s.remoteAccountID(ctx, acc)
	if err != nil {
		return nil, err
	}
	if remoteID != nil {
		err := s.remote.DeleteAccount(ctx, *remoteID)
		switch {
		case pdnsadmin.IsNotFound(err):
			s.logger.Info("Аккаунт уже удалён в PowerDNS-Admin",
				slog.String("name", acc.Name),
			)
		case err != nil:
			return nil, classifyRemote("удаление аккаунта в PowerDNS-Admin", err)
		}
	}

	if err := s.store.Accounts().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.syncAccounts(ctx), nil
		}
		s.logger.Error("Аккаунт удалён в PowerDNS-Admin, но не удалён локально",
			slog.String("name", acc.Name),
			slog.String("error", err.Error()),
		)
		return nil, &DivergenceError{Op: "delete", Resource: "account " + acc.Name, Err: err}
	}

	s.logger.Info("Аккаунт удалён", slog.String("name", acc.Name))
	return s.syncAccounts(ctx), nil
}

// remoteAccountID возвращает удалённый id аккаунта.
// Если он не сохранён локально, аккаунт ищется по имени; nil — аккаунта нет.
func (s *AccountService) remoteAccountID(ctx context.Context, acc *model.Account) (*int64, error) {
	if acc.RemoteAccountID != nil {
		return acc.RemoteAccountID, nil
	}
	ra, err := s.remote.GetAccount(ctx, acc.Name)
	if pdnsadmin.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyRemote("поиск аккаунта в PowerDNS-Admin", err)
	}
	return &ra.ID, nil
}

func (s *AccountService) syncAccounts(ctx context.Context) *SyncOutcome {
	if !s.autoSync || s.reconciler == nil {
		return nil
	}
	res, err := s.reconciler.SyncAccounts(ctx)
	if err != nil {
		s.logger.Warn("Автосинхронизация аккаунтов не выполнена",
			slog.String("error", err.Error()),
		)
	}
	return &SyncOutcome{Result: res, Err: err}
}

func validateAccountName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: имя аккаунта обязательно", ErrValidation)
	}
	if strings.ContainsAny(name, " \t\r\n/") {
		return fmt.Errorf("%w: имя аккаунта %q содержит пробелы или '/'", ErrValidation, name)
	}
	return nil
}

// normalizeIPs проверяет адреса и приводит их к каноническому виду.
// Дубликаты удаляются, порядок сохраняется.
func normalizeIPs(ips []string) ([]string, error) {
	result := make([]string, 0, len(ips))
	seen := make(map[netip.Addr]struct{}, len(ips))
	for _, raw := range ips {
		addr, err := netip.ParseAddr(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: некорректный IP-адрес %q", ErrValidation, raw)
		}
		addr = addr.Unmap()
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr.String())
	}
	return result, nil
}
