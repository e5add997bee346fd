// domains.go — управление доменами (зонами) и назначением владельца.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/svdleer/pdnsapi-sub000/internal/dnsname"
	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

// Допустимые типы зон PowerDNS.
var zoneKinds = map[string]string{
	"native": "Native",
	"master": "Master",
	"slave":  "Slave",
}

// DomainInput — данные для создания зоны.
type DomainInput struct {
	Name        string
	Kind        string
	Nameservers []string
	// AccountName — владелец зоны в PowerDNS-Admin, пусто — без владельца
	AccountName string
}

// DomainDeletion — итог удаления домена.
type DomainDeletion struct {
	Domain *model.Domain
	// AssignmentsPruned — связи, удалённые каскадно
	AssignmentsPruned int
	Sync              *SyncOutcome
}

// DomainService — бизнес-логика доменов.
type DomainService struct {
	remote     Directory
	store      repository.Store
	reconciler *Reconciler
	autoSync   bool
	logger     *slog.Logger
}

// NewDomainService создаёт сервис доменов.
func NewDomainService(
	remote Directory,
	store repository.Store,
	reconciler *Reconciler,
	autoSync bool,
	logger *slog.Logger,
) *DomainService {
	return &DomainService{
		remote:     remote,
		store:      store,
		reconciler: reconciler,
		autoSync:   autoSync,
		logger:     logger.With(slog.String("component", "domain_service")),
	}
}

// List возвращает домены по фильтру, упорядоченные по имени.
func (s *DomainService) List(ctx context.Context, filter repository.DomainFilter) ([]*model.Domain, error) {
	domains, err := s.store.Domains().List(ctx, filter)
	if err != nil {
		return nil, classifyStore("список доменов", err)
	}
	return domains, nil
}

// Get возвращает домен по локальному id.
func (s *DomainService) Get(ctx context.Context, id int64) (*model.Domain, error) {
	d, err := s.store.Domains().GetByID(ctx, id)
	if err != nil {
		return nil, classifyStore(fmt.Sprintf("домен %d", id), err)
	}
	return d, nil
}

// GetByName возвращает домен по имени в любой записи (регистр, точка в конце).
func (s *DomainService) GetByName(ctx context.Context, name string) (*model.Domain, error) {
	canonical := dnsname.Canonicalize(name)
	d, err := s.store.Domains().GetByName(ctx, canonical)
	if err != nil {
		return nil, classifyStore(fmt.Sprintf("домен %s", canonical), err)
	}
	return d, nil
}

// Create создаёт зону в PowerDNS-Admin и сохраняет её локально.
func (s *DomainService) Create(ctx context.Context, input DomainInput) (*model.Domain, *SyncOutcome, error) {
	name := dnsname.Canonicalize(input.Name)
	if !dnsname.Valid(name) {
		return nil, nil, fmt.Errorf("%w: недопустимое имя зоны %q", ErrValidation, input.Name)
	}

	kind := defaultZoneKind
	if input.Kind != "" {
		k, ok := zoneKinds[strings.ToLower(input.Kind)]
		if !ok {
			return nil, nil, fmt.Errorf("%w: неизвестный тип зоны %q", ErrValidation, input.Kind)
		}
		kind = k
	}

	nameservers := make([]string, 0, len(input.Nameservers))
	for _, ns := range input.Nameservers {
		c := dnsname.Canonicalize(ns)
		if !dnsname.Valid(c) {
			return nil, nil, fmt.Errorf("%w: недопустимое имя NS %q", ErrValidation, ns)
		}
		nameservers = append(nameservers, c)
	}

	if _, err := s.store.Domains().GetByName(ctx, name); err == nil {
		return nil, nil, fmt.Errorf("%w: домен %s уже существует", ErrConflict, name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, classifyStore("проверка домена", err)
	}

	zone, err := s.remote.CreateZone(ctx, pdnsadmin.ZoneInput{
		Name:        name,
		Kind:        kind,
		Nameservers: nameservers,
		Account:     strings.TrimSpace(input.AccountName),
	})
	if err != nil {
		return nil, nil, classifyRemote("создание зоны в PowerDNS-Admin", err)
	}
	if zone.Account == "" {
		zone.Account = strings.TrimSpace(input.AccountName)
	}

	d, err := s.reconciler.ApplyZone(ctx, *zone)
	if err != nil {
		s.logger.Error("Зона создана в PowerDNS-Admin, но не сохранена локально",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, nil, &DivergenceError{Op: "create", Resource: "domain " + name, Err: err}
	}

	s.logger.Info("Домен создан",
		slog.String("name", name),
		slog.Int64("id", d.ID),
	)

	synced := s.syncDomains(ctx)
	if synced != nil && synced.Err == nil {
		if fresh, err := s.store.Domains().GetByID(ctx, d.ID); err == nil {
			d = fresh
		}
	}
	return d, synced, nil
}

// Delete удаляет зону из PowerDNS-Admin, затем локальный домен и его связи.
func (s *DomainService) Delete(ctx context.Context, id int64) (*DomainDeletion, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	pruned, err := s.store.Assignments().CountByDomain(ctx, id)
	if err != nil {
		return nil, classifyStore("подсчёт связей домена", err)
	}

	remoteID, err := s.remoteZoneID(ctx, d)
	if err != nil {
		return nil, err
	}
	if remoteID != nil {
		err := s.remote.DeleteZone(ctx, *remoteID)
		switch {
		case pdnsadmin.IsNotFound(err):
			s.logger.Info("Зона уже удалена в PowerDNS-Admin", slog.String("name", d.Name))
		case err != nil:
			return nil, classifyRemote("удаление зоны в PowerDNS-Admin", err)
		}
	}

	if err := s.store.Domains().Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Зона удалена в PowerDNS-Admin, но не удалена локально",
			slog.String("name", d.Name),
			slog.String("error", err.Error()),
		)
		return nil, &DivergenceError{Op: "delete", Resource: "domain " + d.Name, Err: err}
	}

	s.logger.Info("Домен удалён",
		slog.String("name", d.Name),
		slog.Int("assignments_pruned", pruned),
	)
	return &DomainDeletion{Domain: d, AssignmentsPruned: pruned, Sync: s.syncDomains(ctx)}, nil
}

// SetOwner назначает (accountID != nil) или снимает (nil) владельца домена локально.
// Назначенный вручную владелец не перезаписывается синхронизацией;
// после снятия владелец снова берётся из PowerDNS-Admin.
func (s *DomainService) SetOwner(ctx context.Context, id int64, accountID *int64) (*model.Domain, error) {
	var result *model.Domain
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		d, err := tx.Domains().GetByID(ctx, id)
		if err != nil {
			return classifyStore(fmt.Sprintf("домен %d", id), err)
		}

		if accountID != nil {
			if _, err := tx.Accounts().GetByID(ctx, *accountID); err != nil {
				return classifyStore(fmt.Sprintf("аккаунт %d", *accountID), err)
			}
			d.AccountID = accountID
			d.OwnerSource = model.OwnerSourceManual
		} else {
			d.AccountID = nil
			d.OwnerSource = model.OwnerSourceRemote
		}

		if err := tx.Domains().Update(ctx, d); err != nil {
			return classifyStore("назначение владельца", err)
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Владелец домена изменён",
		slog.String("name", result.Name),
		slog.String("owner_source", result.OwnerSource),
	)
	return result, nil
}

// remoteZoneID возвращает удалённый id зоны; при отсутствии в локальной
// записи зона ищется в PowerDNS-Admin по имени. nil — зоны нет.
func (s *DomainService) remoteZoneID(ctx context.Context, d *model.Domain) (*int64, error) {
	if d.RemoteZoneID != nil {
		return d.RemoteZoneID, nil
	}
	zones, err := s.remote.ListZones(ctx)
	if err != nil {
		return nil, classifyRemote("поиск зоны в PowerDNS-Admin", err)
	}
	for _, z := range zones {
		if dnsname.Equal(z.Name, d.Name) {
			id := z.ID
			return &id, nil
		}
	}
	return nil, nil
}

func (s *DomainService) syncDomains(ctx context.Context) *SyncOutcome {
	if !s.autoSync || s.reconciler == nil {
		return nil
	}
	res, err := s.reconciler.SyncDomains(ctx, DefaultSyncOptions())
	if err != nil {
		s.logger.Warn("Автосинхронизация доменов не выполнена",
			slog.String("error", err.Error()),
		)
	}
	return &SyncOutcome{Result: res, Err: err}
}
