package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svdleer/pdnsapi-sub000/internal/api/handlers"
	"github.com/svdleer/pdnsapi-sub000/internal/identity"
	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
	"github.com/svdleer/pdnsapi-sub000/internal/testutil/fakepdns"
	"github.com/svdleer/pdnsapi-sub000/internal/testutil/memstore"
)

// staticChecker — проверка готовности с фиксированным результатом.
type staticChecker struct {
	status, message string
}

func (c staticChecker) CheckReady(context.Context) (string, string) { return c.status, c.message }

type apiEnv struct {
	remote *fakepdns.Server
	store  *memstore.Store
	router http.Handler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	remote := fakepdns.New(t)
	store := memstore.New()
	return &apiEnv{
		remote: remote,
		store:  store,
		router: buildRouter(remote.Client(), store, staticChecker{status: "ok"}, remote.URL),
	}
}

func buildRouter(client *pdnsadmin.Client, store *memstore.Store, pg handlers.ReadinessChecker, baseURL string) http.Handler {
	logger := testLogger()
	rec := service.NewReconciler(client, store, identity.NewMapper(), logger)
	h := handlers.NewAPIHandler(
		handlers.NewHealthHandler(pg, client),
		service.NewAccountService(client, store, rec, false, logger),
		service.NewDomainService(client, store, rec, false, logger),
		service.NewAssignmentService(store, logger),
		rec,
		service.NewStatusService(client, store, baseURL, logger),
		logger,
	)
	return NewRouter(logger, h)
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return doRequest(t, e.router, method, path, body)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "нет поля error: %v", body)
	return e["code"].(string)
}

func TestHealth(t *testing.T) {
	e := newAPIEnv(t)

	rec, body := e.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdnsapi", body["service"])

	rec, body = e.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["powerdns_admin"].(map[string]any)["status"])

	failing := buildRouter(e.remote.Client(), e.store, staticChecker{status: "fail", message: "нет соединения"}, e.remote.URL)
	rec, body = doRequest(t, failing, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "fail", body["status"])
}

func TestUnknownRoute(t *testing.T) {
	e := newAPIEnv(t)

	rec, body := e.do(t, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestAccountsLifecycle(t *testing.T) {
	e := newAPIEnv(t)

	rec, body := e.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{
		"name":         "acme",
		"description":  "Acme Corp",
		"mail":         "ops@acme.test",
		"ip_addresses": []string{"192.0.2.1", "192.0.2.1", "2001:db8::1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	acc := body["account"].(map[string]any)
	assert.Equal(t, "acme", acc["name"])
	assert.Equal(t, []any{"192.0.2.1", "2001:db8::1"}, acc["ip_addresses"])
	assert.NotNil(t, acc["remote_account_id"])
	id := int64(acc["id"].(float64))

	rec, body = e.do(t, http.MethodGet, "/api/v1/accounts/acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, id, body["id"])

	rec, body = e.do(t, http.MethodPut, "/api/v1/accounts/"+itoa(id), map[string]any{"contact": "Jane"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Jane", body["account"].(map[string]any)["contact"])
	assert.Equal(t, "Jane", e.remote.Accounts()[0].Contact)

	rec, body = e.do(t, http.MethodPut, "/api/v1/accounts/"+itoa(id), map[string]any{"name": "renamed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))

	rec, body = e.do(t, http.MethodGet, "/api/v1/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, body = e.do(t, http.MethodDelete, "/api/v1/accounts/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", body["deleted"])
	assert.Empty(t, e.remote.Accounts())

	rec, body = e.do(t, http.MethodGet, "/api/v1/accounts/"+itoa(id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestCreateAccount_RemoteRejected(t *testing.T) {
	e := newAPIEnv(t)
	e.remote.AddAccount(pdnsadmin.Account{Name: "acme"})

	rec, body := e.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{"name": "acme"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "REMOTE_REJECTED", errorCode(t, body))
	detail := body["error"].(map[string]any)
	assert.EqualValues(t, http.StatusConflict, detail["remote_status"])
	assert.Equal(t, "Account already exists", detail["remote_body"].(map[string]any)["msg"])

	rec, body = e.do(t, http.MethodGet, "/api/v1/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["total"])
}

func TestCreateAccount_InvalidBody(t *testing.T) {
	e := newAPIEnv(t)

	rec, body := e.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{"name": "acme", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))

	rec, body = e.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{"name": "acme", "ip_addresses": []string{"not-an-ip"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestMisconfiguredRemote(t *testing.T) {
	store := memstore.New()
	client := pdnsadmin.New(pdnsadmin.Settings{}, &http.Client{Timeout: time.Second}, testLogger())
	router := buildRouter(client, store, staticChecker{status: "ok"}, "")

	rec, body := doRequest(t, router, http.MethodPost, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "MISCONFIGURED", errorCode(t, body))
}

func TestSync_ResolvesOwners(t *testing.T) {
	e := newAPIEnv(t)
	e.remote.AddAccount(pdnsadmin.Account{Name: "acme", Mail: "ops@acme.test"})
	e.remote.AddZone(pdnsadmin.Zone{Name: "Example.COM.", Account: "acme"})
	e.remote.AddZone(pdnsadmin.Zone{Name: "orphan.test", Account: ""})

	rec, body := e.do(t, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "changed", body["status"])
	assert.EqualValues(t, 1, body["accounts"].(map[string]any)["created"])
	assert.EqualValues(t, 2, body["domains"].(map[string]any)["created"])

	rec, acc := e.do(t, http.MethodGet, "/api/v1/accounts/acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, dom := e.do(t, http.MethodGet, "/api/v1/domains/example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "example.com.", dom["name"])
	assert.Equal(t, "example.com", dom["display_name"])
	assert.Equal(t, acc["id"], dom["account_id"])
	assert.Equal(t, "remote", dom["owner_source"])

	rec, body = e.do(t, http.MethodGet, "/api/v1/domains?account_id="+itoa(int64(acc["id"].(float64))), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, body = e.do(t, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unchanged", body["status"])
}

func TestSync_Collections(t *testing.T) {
	e := newAPIEnv(t)
	e.remote.AddAccount(pdnsadmin.Account{Name: "acme"})

	rec, body := e.do(t, http.MethodPost, "/api/v1/sync?collection=accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, body["accounts"])
	assert.Nil(t, body["domains"])

	rec, body = e.do(t, http.MethodPost, "/api/v1/sync?collection=records", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))

	rec, body = e.do(t, http.MethodPost, "/api/v1/sync?create_accounts=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestSync_PartialIsOK(t *testing.T) {
	e := newAPIEnv(t)
	e.remote.AddZone(pdnsadmin.Zone{Name: "good.test"})
	e.remote.AddZone(pdnsadmin.Zone{Name: "bad.test"})
	e.store.SetFailFunc(func(op, key string) error {
		if op == "domain.create" && key == "bad.test." {
			return errors.New("disk full")
		}
		return nil
	})

	rec, body := e.do(t, http.MethodPost, "/api/v1/sync?collection=domains", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "partial", body["status"])
	domains := body["domains"].(map[string]any)
	assert.EqualValues(t, 1, domains["failed"])
	skipped := domains["skipped"].([]any)
	require.Len(t, skipped, 1)
	assert.Equal(t, "bad.test.", skipped[0].(map[string]any)["key"])
}

func TestSync_RemoteUnavailable(t *testing.T) {
	e := newAPIEnv(t)
	e.remote.Close()

	rec, body := e.do(t, http.MethodPost, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "REMOTE_UNAVAILABLE", errorCode(t, body))
}

func TestDomains_CreateOwnerAndDelete(t *testing.T) {
	e := newAPIEnv(t)

	rec, body := e.do(t, http.MethodPost, "/api/v1/domains", map[string]any{"name": "New.Test", "kind": "master"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dom := body["domain"].(map[string]any)
	assert.Equal(t, "new.test.", dom["name"])
	assert.Equal(t, "Master", dom["kind"])
	domainID := int64(dom["id"].(float64))

	rec, body = e.do(t, http.MethodPost, "/api/v1/domains", map[string]any{"name": "new.test."})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, body))

	rec, body = e.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{"name": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	accountID := int64(body["account"].(map[string]any)["id"].(float64))

	rec, body = e.do(t, http.MethodPut, "/api/v1/domains/"+itoa(domainID), map[string]any{"account_id": accountID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dom = body["domain"].(map[string]any)
	assert.EqualValues(t, accountID, dom["account_id"])
	assert.Equal(t, "manual", dom["owner_source"])

	rec, body = e.do(t, http.MethodPut, "/api/v1/domains/"+itoa(domainID), map[string]any{"account_id": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	dom = body["domain"].(map[string]any)
	assert.Nil(t, dom["account_id"])
	assert.Equal(t, "remote", dom["owner_source"])

	rec, body = e.do(t, http.MethodPut, "/api/v1/domains/"+itoa(domainID), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))

	rec, body = e.do(t, http.MethodPost, "/api/v1/domain-assignments", map[string]any{"domain_id": domainID, "account_id": accountID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body = e.do(t, http.MethodDelete, "/api/v1/domains/"+itoa(domainID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "new.test.", body["deleted"])
	assert.EqualValues(t, 1, body["assignments_pruned"])
	assert.Empty(t, e.remote.Zones())
}

func TestAssignments(t *testing.T) {
	e := newAPIEnv(t)
	e.remote.AddAccount(pdnsadmin.Account{Name: "acme", Mail: "ops@acme.test"})
	e.remote.AddZone(pdnsadmin.Zone{Name: "acme.test"})
	rec, _ := e.do(t, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, acc := e.do(t, http.MethodGet, "/api/v1/accounts/acme", nil)
	_, dom := e.do(t, http.MethodGet, "/api/v1/domains/acme.test", nil)
	accountID, domainID := int64(acc["id"].(float64)), int64(dom["id"].(float64))

	rec, body := e.do(t, http.MethodPost, "/api/v1/domain-assignments", map[string]any{
		"domain_id": domainID, "account_id": accountID, "assigned_by": " alice ",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "acme.test.", body["domain_name"])
	assert.Equal(t, "ops@acme.test", body["account_mail"])
	assert.Equal(t, "alice", body["assigned_by"])

	rec, body = e.do(t, http.MethodPost, "/api/v1/domain-assignments", map[string]any{"domain_id": domainID, "account_id": accountID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, body))

	rec, body = e.do(t, http.MethodPost, "/api/v1/domain-assignments", map[string]any{"domain_id": domainID, "account_id": 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))

	rec, body = e.do(t, http.MethodGet, "/api/v1/domain-assignments?account_id="+itoa(accountID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, body = e.do(t, http.MethodGet, "/api/v1/domain-assignments?domain_id=999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))

	path := "/api/v1/domain-assignments?domain_id=" + itoa(domainID) + "&account_id=" + itoa(accountID)
	rec, _ = e.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = e.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))

	rec, body = e.do(t, http.MethodDelete, "/api/v1/domain-assignments?domain_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestCleanup(t *testing.T) {
	e := newAPIEnv(t)
	e.remote.AddZone(pdnsadmin.Zone{Name: "keep.test"})
	e.remote.AddZone(pdnsadmin.Zone{Name: "gone.test"})
	rec, _ := e.do(t, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	e.remote.RemoveZone("gone.test")

	rec, body := e.do(t, http.MethodPost, "/api/v1/sync/cleanup?dry_run=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["dry_run"])
	assert.Equal(t, []any{"gone.test."}, body["domains_removed"])

	rec, _ = e.do(t, http.MethodGet, "/api/v1/domains/gone.test", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/api/v1/sync/cleanup", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/domains/gone.test", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus(t *testing.T) {
	e := newAPIEnv(t)
	e.remote.AddAccount(pdnsadmin.Account{Name: "acme"})

	rec, body := e.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, e.remote.URL, body["base_url"])
	assert.Equal(t, true, body["admin"].(map[string]any)["connected"])
	assert.Equal(t, true, body["server"].(map[string]any)["connected"])
	assert.Equal(t, "4.9.0", body["server_version"])
	assert.EqualValues(t, 1, body["remote_accounts"])
	assert.EqualValues(t, 0, body["local_accounts"])
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
