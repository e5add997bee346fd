// status.go — сводный статус: подключение к PowerDNS-Admin (обе поверхности),
// локальные счётчики и время последней синхронизации.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

// SurfaceStatus — доступность одной поверхности PowerDNS-Admin.
type SurfaceStatus struct {
	Connected bool
	Error     *string
}

// Status — сводный статус сервиса.
type Status struct {
	BaseURL string
	Admin   SurfaceStatus
	Server  SurfaceStatus
	// ServerVersion — версия PowerDNS, если server-поверхность доступна
	ServerVersion     *string
	RemoteAccounts    *int
	LocalAccounts     *int
	LocalDomains      *int
	LastAccountSyncAt *time.Time
	LastDomainSyncAt  *time.Time
}

// StatusService — сервис сводного статуса.
type StatusService struct {
	remote  Directory
	store   repository.Store
	baseURL string
	logger  *slog.Logger
}

// NewStatusService создаёт сервис статуса.
func NewStatusService(remote Directory, store repository.Store, baseURL string, logger *slog.Logger) *StatusService {
	return &StatusService{
		remote:  remote,
		store:   store,
		baseURL: baseURL,
		logger:  logger.With(slog.String("component", "status_service")),
	}
}

// GetStatus собирает статус. Ошибки отдельных проверок попадают в ответ, а не в error.
func (s *StatusService) GetStatus(ctx context.Context) *Status {
	status := &Status{BaseURL: s.baseURL}

	// Admin-поверхность
	accounts, err := s.remote.ListAccounts(ctx)
	if err != nil {
		msg := classifyRemote("admin-поверхность", err).Error()
		status.Admin.Error = &msg
	} else {
		status.Admin.Connected = true
		n := len(accounts)
		status.RemoteAccounts = &n
	}

	// Server-поверхность
	server, err := s.remote.ServerInfo(ctx)
	if err != nil {
		msg := classifyRemote("server-поверхность", err).Error()
		status.Server.Error = &msg
	} else {
		status.Server.Connected = true
		status.ServerVersion = &server.Version
	}

	if n, err := s.store.Accounts().Count(ctx); err != nil {
		s.logger.Warn("Ошибка подсчёта аккаунтов", slog.String("error", err.Error()))
	} else {
		status.LocalAccounts = &n
	}
	if n, err := s.store.Domains().Count(ctx); err != nil {
		s.logger.Warn("Ошибка подсчёта доменов", slog.String("error", err.Error()))
	} else {
		status.LocalDomains = &n
	}

	syncState, err := s.store.SyncState().Get(ctx)
	if err != nil {
		s.logger.Warn("Ошибка получения sync state", slog.String("error", err.Error()))
	} else {
		status.LastAccountSyncAt = syncState.LastAccountSyncAt
		status.LastDomainSyncAt = syncState.LastDomainSyncAt
	}

	return status
}
