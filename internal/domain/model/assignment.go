package model

import "time"

// Assignment — ручная связь «домен — аккаунт» (многие ко многим).
// Хранится в таблице domain_assignments, синхронизацией не изменяется.
type Assignment struct {
	DomainID   int64
	AccountID  int64
	AssignedAt time.Time
	// AssignedBy — кто создал связь (опционально)
	AssignedBy *string
}

// AssignmentView — связь вместе с данными домена и аккаунта.
type AssignmentView struct {
	Assignment
	DomainName   string
	RemoteZoneID *int64
	AccountName  string
	AccountMail  string
}
