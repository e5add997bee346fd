package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
)

func TestStatus(t *testing.T) {
	e := newTestEnv(t, false)
	ctx := context.Background()

	e.remote.AddAccount(pdnsadmin.Account{Name: "acme-co"})
	e.remote.AddAccount(pdnsadmin.Account{Name: "globex"})
	require.NoError(t, e.store.Accounts().Create(ctx, &model.Account{Name: "acme-co"}))

	svc := NewStatusService(e.remote.Client(), e.store, e.remote.URL, testLogger())

	st := svc.GetStatus(ctx)
	assert.Equal(t, e.remote.URL, st.BaseURL)
	assert.True(t, st.Admin.Connected)
	assert.Nil(t, st.Admin.Error)
	require.NotNil(t, st.RemoteAccounts)
	assert.Equal(t, 2, *st.RemoteAccounts)
	assert.True(t, st.Server.Connected)
	require.NotNil(t, st.ServerVersion)
	assert.Equal(t, "4.9.0", *st.ServerVersion)
	require.NotNil(t, st.LocalAccounts)
	assert.Equal(t, 1, *st.LocalAccounts)
	require.NotNil(t, st.LocalDomains)
	assert.Zero(t, *st.LocalDomains)
	assert.Nil(t, st.LastDomainSyncAt)

	e.remote.Fail("GET /servers/localhost", 500, `{"error":"backend down"}`)
	st = svc.GetStatus(ctx)
	assert.True(t, st.Admin.Connected)
	assert.False(t, st.Server.Connected)
	require.NotNil(t, st.Server.Error)
	assert.Contains(t, *st.Server.Error, "backend down")
}
