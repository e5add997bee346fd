// assignments.go — связи домен–аккаунт. Хранятся только локально,
// в PowerDNS-Admin не передаются и синхронизацией не меняются.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

// AssignmentService — бизнес-логика связей домен–аккаунт.
type AssignmentService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewAssignmentService создаёт сервис связей.
func NewAssignmentService(store repository.Store, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{
		store:  store,
		logger: logger.With(slog.String("component", "assignment_service")),
	}
}

// Create связывает домен с аккаунтом.
// Несуществующий домен или аккаунт — ErrNotFound, повторная связь — ErrConflict.
func (s *AssignmentService) Create(ctx context.Context, domainID, accountID int64, assignedBy string) (*model.AssignmentView, error) {
	var view *model.AssignmentView
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Domains().GetByID(ctx, domainID); err != nil {
			return classifyStore(fmt.Sprintf("домен %d", domainID), err)
		}
		if _, err := tx.Accounts().GetByID(ctx, accountID); err != nil {
			return classifyStore(fmt.Sprintf("аккаунт %d", accountID), err)
		}

		a := &model.Assignment{DomainID: domainID, AccountID: accountID}
		if by := strings.TrimSpace(assignedBy); by != "" {
			a.AssignedBy = &by
		}
		if err := tx.Assignments().Create(ctx, a); err != nil {
			return classifyStore("создание связи", err)
		}

		v, err := tx.Assignments().Get(ctx, domainID, accountID)
		if err != nil {
			return classifyStore("чтение связи", err)
		}
		view = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Домен связан с аккаунтом",
		slog.String("domain", view.DomainName),
		slog.String("account", view.AccountName),
	)
	return view, nil
}

// Delete удаляет связь.
func (s *AssignmentService) Delete(ctx context.Context, domainID, accountID int64) error {
	if err := s.store.Assignments().Delete(ctx, domainID, accountID); err != nil {
		return classifyStore(fmt.Sprintf("связь %d/%d", domainID, accountID), err)
	}
	s.logger.Info("Связь удалена",
		slog.Int64("domain_id", domainID),
		slog.Int64("account_id", accountID),
	)
	return nil
}

// Get возвращает связь с именами домена и аккаунта.
func (s *AssignmentService) Get(ctx context.Context, domainID, accountID int64) (*model.AssignmentView, error) {
	v, err := s.store.Assignments().Get(ctx, domainID, accountID)
	if err != nil {
		return nil, classifyStore(fmt.Sprintf("связь %d/%d", domainID, accountID), err)
	}
	return v, nil
}

// ListAll возвращает все связи, упорядоченные по имени домена, затем аккаунта.
func (s *AssignmentService) ListAll(ctx context.Context) ([]*model.AssignmentView, error) {
	return s.list(ctx, repository.AssignmentFilter{})
}

// ListByAccount возвращает связи аккаунта. Несуществующий аккаунт — ErrNotFound.
func (s *AssignmentService) ListByAccount(ctx context.Context, accountID int64) ([]*model.AssignmentView, error) {
	if _, err := s.store.Accounts().GetByID(ctx, accountID); err != nil {
		return nil, classifyStore(fmt.Sprintf("аккаунт %d", accountID), err)
	}
	return s.list(ctx, repository.AssignmentFilter{AccountID: &accountID})
}

// ListByDomain возвращает связи домена. Несуществующий домен — ErrNotFound.
func (s *AssignmentService) ListByDomain(ctx context.Context, domainID int64) ([]*model.AssignmentView, error) {
	if _, err := s.store.Domains().GetByID(ctx, domainID); err != nil {
		return nil, classifyStore(fmt.Sprintf("домен %d", domainID), err)
	}
	return s.list(ctx, repository.AssignmentFilter{DomainID: &domainID})
}

func (s *AssignmentService) list(ctx context.Context, filter repository.AssignmentFilter) ([]*model.AssignmentView, error) {
	views, err := s.store.Assignments().List(ctx, filter)
	if err != nil {
		return nil, classifyStore("список связей", err)
	}
	return views, nil
}
