package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"serve", "migrate", "sync", "cleanup"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestSyncCommand_RejectsUnknownCollection(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"sync", "records"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records")
}

func TestWriteReport(t *testing.T) {
	accounts := &model.SyncResult{RunID: "r1", Collection: model.CollectionAccounts, Total: 2, Created: 2}
	domains := &model.SyncResult{RunID: "r2", Collection: model.CollectionDomains, Total: 2, Unchanged: 1}
	domains.Skip("bad.test.", errors.New("disk full"))

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, &service.SyncReport{Accounts: accounts, Domains: domains}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "changed", got[0]["status"])
	assert.Equal(t, "partial", got[1]["status"])
	skipped := got[1]["skipped"].([]any)
	require.Len(t, skipped, 1)
	assert.Equal(t, "bad.test.", skipped[0].(map[string]any)["key"])
}
