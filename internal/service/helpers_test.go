package service

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/identity"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
	"github.com/svdleer/pdnsapi-sub000/internal/testutil/fakepdns"
	"github.com/svdleer/pdnsapi-sub000/internal/testutil/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	remote      *fakepdns.Server
	store       *memstore.Store
	reconciler  *Reconciler
	accounts    *AccountService
	domains     *DomainService
	assignments *AssignmentService
}

func newTestEnv(t *testing.T, autoSync bool) *testEnv {
	t.Helper()

	remote := fakepdns.New(t)
	store := memstore.New()
	client := remote.Client()
	rec := NewReconciler(client, store, identity.NewMapper(), testLogger())

	return &testEnv{
		remote:      remote,
		store:       store,
		reconciler:  rec,
		accounts:    NewAccountService(client, store, rec, autoSync, testLogger()),
		domains:     NewDomainService(client, store, rec, autoSync, testLogger()),
		assignments: NewAssignmentService(store, testLogger()),
	}
}

func (e *testEnv) account(t *testing.T, name string) *model.Account {
	t.Helper()
	acc, err := e.store.Accounts().GetByName(context.Background(), name)
	require.NoError(t, err, "аккаунт %s", name)
	return acc
}

func (e *testEnv) domain(t *testing.T, name string) *model.Domain {
	t.Helper()
	d, err := e.store.Domains().GetByName(context.Background(), name)
	require.NoError(t, err, "домен %s", name)
	return d
}

func (e *testEnv) counts(t *testing.T) (accounts, domains int) {
	t.Helper()
	ctx := context.Background()
	accounts, err := e.store.Accounts().Count(ctx)
	require.NoError(t, err)
	domains, err = e.store.Domains().Count(ctx)
	require.NoError(t, err)
	return accounts, domains
}

// staleStore имитирует гонку: первые misses вызовов Domains().GetByName
// возвращают ErrNotFound, хотя запись уже есть.
type staleStore struct {
	repository.Store
	misses *atomic.Int32
}

func (s staleStore) Domains() repository.DomainRepository {
	return staleDomains{DomainRepository: s.Store.Domains(), misses: s.misses}
}

func (s staleStore) RunInTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.RunInTx(ctx, func(tx repository.Store) error {
		return fn(staleStore{Store: tx, misses: s.misses})
	})
}

type staleDomains struct {
	repository.DomainRepository
	misses *atomic.Int32
}

func (d staleDomains) GetByName(ctx context.Context, name string) (*model.Domain, error) {
	if d.misses.Add(-1) >= 0 {
		return nil, repository.ErrNotFound
	}
	return d.DomainRepository.GetByName(ctx, name)
}
