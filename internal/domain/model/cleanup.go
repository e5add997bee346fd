package model

import "time"

// CleanupResult — итог удаления локальных записей, которых больше нет в PowerDNS-Admin.
type CleanupResult struct {
	RunID  string
	DryRun bool
	// DomainsRemoved — канонические имена удалённых (или подлежащих удалению) доменов
	DomainsRemoved []string
	// AccountsRemoved — имена удалённых аккаунтов
	AccountsRemoved []string
	// AssignmentsPruned — связи, удалённые каскадно вместе с ними
	AssignmentsPruned int
	Failed            int
	Skipped           []SyncSkip
	StartedAt         time.Time
	CompletedAt       time.Time
}

// Skip фиксирует запись, которую не удалось удалить.
func (r *CleanupResult) Skip(key string, err error) {
	r.Failed++
	r.Skipped = append(r.Skipped, SyncSkip{Key: key, Reason: err.Error()})
}
