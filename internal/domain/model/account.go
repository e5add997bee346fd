package model

import "time"

// Account — административный владелец зон.
// Хранится в таблице accounts, зеркалирует аккаунт PowerDNS-Admin.
type Account struct {
	// ID — локальный идентификатор
	ID int64
	// Name — уникальное имя, неизменяемое после создания
	Name string
	// Description — описание (из PowerDNS-Admin)
	Description string
	// Contact — контактное лицо (из PowerDNS-Admin)
	Contact string
	// Mail — e-mail (из PowerDNS-Admin)
	Mail string
	// IPAddresses — упорядоченный список IP-адресов без повторов.
	// Хранится только локально и никогда не отправляется в PowerDNS-Admin.
	IPAddresses []string
	// RemoteAccountID — id аккаунта в PowerDNS-Admin (nil, если не подтверждён)
	RemoteAccountID *int64
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
