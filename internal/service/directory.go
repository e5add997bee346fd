package service

import (
	"context"

	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
)

// Directory — операции PowerDNS-Admin, используемые сервисами.
// Реализуется *pdnsadmin.Client.
type Directory interface {
	ListAccounts(ctx context.Context) ([]pdnsadmin.Account, error)
	GetAccount(ctx context.Context, name string) (*pdnsadmin.Account, error)
	CreateAccount(ctx context.Context, input pdnsadmin.AccountInput) (*pdnsadmin.Account, error)
	UpdateAccount(ctx context.Context, id int64, input pdnsadmin.AccountInput) error
	DeleteAccount(ctx context.Context, id int64) error
	ListZones(ctx context.Context) ([]pdnsadmin.Zone, error)
	CreateZone(ctx context.Context, input pdnsadmin.ZoneInput) (*pdnsadmin.Zone, error)
	DeleteZone(ctx context.Context, id int64) error
	ServerInfo(ctx context.Context) (*pdnsadmin.Server, error)
}

var _ Directory = (*pdnsadmin.Client)(nil)
