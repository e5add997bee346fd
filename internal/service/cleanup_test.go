package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
)

func TestCleanup(t *testing.T) {
	e := newTestEnv(t, false)
	ctx := context.Background()

	e.remote.AddAccount(pdnsadmin.Account{Name: "acme-co"})
	globexID := e.remote.AddAccount(pdnsadmin.Account{Name: "globex"})
	e.remote.AddZone(pdnsadmin.Zone{Name: "acme.test", Account: "acme-co"})
	e.remote.AddZone(pdnsadmin.Zone{Name: "globex.test", Account: "globex"})
	e.remote.AddZone(pdnsadmin.Zone{Name: "stale.test"})

	_, err := e.reconciler.SyncAll(ctx, DefaultSyncOptions())
	require.NoError(t, err)

	require.NoError(t, e.store.Accounts().Create(ctx, &model.Account{Name: "local-only"}))
	acme := e.account(t, "acme-co")
	_, err = e.assignments.Create(ctx, e.domain(t, "stale.test.").ID, acme.ID, "")
	require.NoError(t, err)
	_, err = e.assignments.Create(ctx, e.domain(t, "globex.test.").ID, acme.ID, "")
	require.NoError(t, err)

	e.remote.RemoveZone("stale.test")
	require.NoError(t, e.remote.Client().DeleteAccount(ctx, globexID))

	res, err := e.reconciler.Cleanup(ctx, CleanupOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, []string{"stale.test."}, res.DomainsRemoved)
	assert.Equal(t, []string{"globex"}, res.AccountsRemoved)
	assert.Equal(t, 1, res.AssignmentsPruned)

	accounts, domains := e.counts(t)
	assert.Equal(t, 3, accounts)
	assert.Equal(t, 3, domains)

	res, err = e.reconciler.Cleanup(ctx, CleanupOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"stale.test."}, res.DomainsRemoved)
	assert.Equal(t, []string{"globex"}, res.AccountsRemoved)
	assert.Equal(t, 1, res.AssignmentsPruned)
	assert.Zero(t, res.Failed)

	accounts, domains = e.counts(t)
	assert.Equal(t, 2, accounts)
	assert.Equal(t, 2, domains)
	e.account(t, "local-only")

	// Домен удалённого аккаунта остаётся без владельца, связь с acme-co сохраняется
	g := e.domain(t, "globex.test.")
	assert.Nil(t, g.AccountID)
	views, err := e.assignments.ListByDomain(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestCleanup_EmptyRemoteGuard(t *testing.T) {
	e := newTestEnv(t, false)
	ctx := context.Background()

	require.NoError(t, e.store.Domains().Create(ctx, &model.Domain{Name: "only.test.", Kind: "Native"}))

	_, err := e.reconciler.Cleanup(ctx, CleanupOptions{})
	require.ErrorIs(t, err, ErrValidation)
	_, domains := e.counts(t)
	assert.Equal(t, 1, domains)

	res, err := e.reconciler.Cleanup(ctx, CleanupOptions{AllowEmptyRemote: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"only.test."}, res.DomainsRemoved)
	_, domains = e.counts(t)
	assert.Zero(t, domains)
}

func TestCleanup_RemoteFailureAborts(t *testing.T) {
	e := newTestEnv(t, false)
	e.remote.Fail("GET /pdnsadmin/zones", 500, `{"msg":"internal"}`)

	_, err := e.reconciler.Cleanup(context.Background(), CleanupOptions{})
	require.ErrorIs(t, err, ErrRemoteRejected)
}
