package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
)

// SyncStateRepository — интерфейс для таблицы sync_state (одна строка).
type SyncStateRepository interface {
	// Get возвращает текущее состояние синхронизации.
	Get(ctx context.Context) (*model.SyncState, error)
	// UpdateAccountSyncAt обновляет время последней синхронизации аккаунтов.
	UpdateAccountSyncAt(ctx context.Context, t time.Time) error
	// UpdateDomainSyncAt обновляет время последней синхронизации доменов.
	UpdateDomainSyncAt(ctx context.Context, t time.Time) error
}

// syncStateRepo — реализация SyncStateRepository.
type syncStateRepo struct {
	db DBTX
}

// NewSyncStateRepository создаёт репозиторий состояния синхронизации.
func NewSyncStateRepository(db DBTX) SyncStateRepository {
	return &syncStateRepo{db: db}
}

func (r *syncStateRepo) Get(ctx context.Context) (*model.SyncState, error) {
	query := `
		SELECT id, last_account_sync_at, last_domain_sync_at, created_at, updated_at
		FROM sync_state
		WHERE id = 1`

	s := &model.SyncState{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.ID, &s.LastAccountSyncAt, &s.LastDomainSyncAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sync_state: %w", err)
	}
	return s, nil
}

func (r *syncStateRepo) UpdateAccountSyncAt(ctx context.Context, t time.Time) error {
	query := `UPDATE sync_state SET last_account_sync_at = $1, updated_at = now() WHERE id = 1`
	if _, err := r.db.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("ошибка обновления last_account_sync_at: %w", err)
	}
	return nil
}

func (r *syncStateRepo) UpdateDomainSyncAt(ctx context.Context, t time.Time) error {
	query := `UPDATE sync_state SET last_domain_sync_at = $1, updated_at = now() WHERE id = 1`
	if _, err := r.db.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("ошибка обновления last_domain_sync_at: %w", err)
	}
	return nil
}
