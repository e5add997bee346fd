package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrPartialSync — часть элементов коллекции не удалось синхронизировать.
var ErrPartialSync = errors.New("синхронизация завершена частично")

// Коллекции синхронизации.
const (
	CollectionAccounts = "accounts"
	CollectionDomains  = "domains"
)

// Статусы результата синхронизации.
const (
	SyncStatusUnchanged = "unchanged"
	SyncStatusChanged   = "changed"
	SyncStatusPartial   = "partial"
)

// SyncState — состояние синхронизации (одна строка в БД).
// Хранится в таблице sync_state (id = 1, всегда одна запись).
type SyncState struct {
	// ID — всегда 1
	ID int
	// LastAccountSyncAt — время последней синхронизации аккаунтов
	LastAccountSyncAt *time.Time
	// LastDomainSyncAt — время последней синхронизации доменов
	LastDomainSyncAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SyncSkip — элемент, пропущенный из-за ошибки.
type SyncSkip struct {
	// Key — естественный ключ элемента (имя аккаунта или каноническое имя зоны)
	Key    string
	Reason string
}

// DigestCollision — разные владельцы с одинаковым дайджестом.
type DigestCollision struct {
	Digest string
	Owners []string
}

// SyncResult — итог одного прогона синхронизации коллекции.
type SyncResult struct {
	// RunID — UUID прогона, попадает в логи
	RunID      string
	Collection string
	// Total — количество элементов в удалённой коллекции
	Total     int
	Created   int
	Updated   int
	Unchanged int
	Failed    int
	// AccountsCreated — аккаунты, созданные при разрешении владельцев зон
	AccountsCreated  int
	Skipped          []SyncSkip
	DigestCollisions []DigestCollision
	StartedAt        time.Time
	CompletedAt      time.Time
}

// Status возвращает итоговый статус прогона.
func (r *SyncResult) Status() string {
	switch {
	case r.Failed > 0:
		return SyncStatusPartial
	case r.Created > 0 || r.Updated > 0 || r.AccountsCreated > 0:
		return SyncStatusChanged
	default:
		return SyncStatusUnchanged
	}
}

// Err возвращает ErrPartialSync, если хотя бы один элемент не обработан.
func (r *SyncResult) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %d из %d", ErrPartialSync, r.Collection, r.Failed, r.Total)
}

// Skip фиксирует неудачный элемент.
func (r *SyncResult) Skip(key string, err error) {
	r.Failed++
	r.Skipped = append(r.Skipped, SyncSkip{Key: key, Reason: err.Error()})
}
