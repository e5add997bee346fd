package model

import (
	"strings"
	"time"
)

// Источник внешнего ключа владельца домена.
const (
	// OwnerSourceRemote — владелец определяется синхронизацией по данным PowerDNS-Admin.
	OwnerSourceRemote = "remote"
	// OwnerSourceManual — владелец назначен явно, синхронизация его не перезаписывает.
	OwnerSourceManual = "manual"
)

// Domain — DNS-зона.
// Хранится в таблице domains; Name всегда в канонической форме с завершающей точкой.
type Domain struct {
	ID int64
	// Name — каноническое имя зоны (например, "example.com.")
	Name string
	// RemoteZoneID — id зоны в PowerDNS-Admin
	RemoteZoneID *int64
	// Kind — тип зоны (Native, Master, Slave)
	Kind string
	// DNSSEC — включён ли DNSSEC
	DNSSEC bool
	// AccountText — имя владельца ровно в том виде, в каком его вернул PowerDNS-Admin
	AccountText string
	// OwnerDigest — CRC32-дайджест имени владельца (группировка без создания аккаунта)
	OwnerDigest *string
	// AccountID — внешний ключ на accounts (основное значение владельца)
	AccountID *int64
	// OwnerSource — кто установил AccountID: remote или manual
	OwnerSource string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayName возвращает имя зоны без завершающей точки.
func (d *Domain) DisplayName() string {
	return strings.TrimSuffix(d.Name, ".")
}
