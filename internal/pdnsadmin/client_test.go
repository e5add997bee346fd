package pdnsadmin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSettings(baseURL string) Settings {
	return Settings{
		BaseURL:       baseURL,
		AdminUser:     "admin",
		AdminPassword: "secret",
		ServerKey:     "server-key",
	}
}

// setupMockPDNS создаёт mock-сервер PowerDNS-Admin с одним обработчиком.
func setupMockPDNS(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(testSettings(server.URL), server.Client(), testLogger())
}

func TestClient_CredentialSelection(t *testing.T) {
	var gotBasicUser, gotAPIKey string
	var gotBasicOK bool

	client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
		gotBasicUser, _, gotBasicOK = r.BasicAuth()
		gotAPIKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	})

	ctx := context.Background()

	if _, err := client.Request(ctx, http.MethodGet, "/pdnsadmin/zones", nil); err != nil {
		t.Fatalf("Request() ошибка: %v", err)
	}
	if !gotBasicOK || gotBasicUser != "admin" {
		t.Errorf("admin-поверхность должна использовать Basic, получено user=%q ok=%v", gotBasicUser, gotBasicOK)
	}
	if gotAPIKey != "" {
		t.Errorf("admin-поверхность не должна отправлять X-API-Key, получено %q", gotAPIKey)
	}

	if _, err := client.Request(ctx, http.MethodGet, "/servers/localhost", nil); err != nil {
		t.Fatalf("Request() ошибка: %v", err)
	}
	if gotAPIKey != "server-key" {
		t.Errorf("server-поверхность должна отправлять X-API-Key, получено %q", gotAPIKey)
	}
	if gotBasicOK {
		t.Error("server-поверхность не должна использовать Basic")
	}
}

func TestClient_SurfaceFor(t *testing.T) {
	client := New(Settings{ServerPrefixes: []string{"/servers", "/api/v1/servers/"}}, nil, testLogger())

	tests := map[string]Surface{
		"/servers":                      SurfaceServer,
		"/servers/localhost/zones":      SurfaceServer,
		"/api/v1/servers/localhost":     SurfaceServer,
		"/serversx":                     SurfaceAdmin,
		"/pdnsadmin/accounts":           SurfaceAdmin,
		"/pdnsadmin/servers/not-server": SurfaceAdmin,
	}
	for path, want := range tests {
		if got := client.SurfaceFor(path); got != want {
			t.Errorf("SurfaceFor(%q) = %v, ожидается %v", path, got, want)
		}
	}
}

func TestClient_NonSuccessIsNotError(t *testing.T) {
	client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"msg":"Domain name is invalid"}`)
	})

	resp, err := client.Request(context.Background(), http.MethodPost, "/pdnsadmin/zones", map[string]string{"name": "x"})
	if err != nil {
		t.Fatalf("Request() не должен возвращать ошибку для не-2xx: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, ожидается 422", resp.StatusCode)
	}
	if resp.OK() {
		t.Error("OK() = true для 422")
	}

	var re *RemoteError
	if !errors.As(resp.AsError(), &re) {
		t.Fatalf("AsError() = %v, ожидается *RemoteError", resp.AsError())
	}
	if re.Message() != "Domain name is invalid" {
		t.Errorf("Message() = %q", re.Message())
	}
	if !errors.Is(resp.AsError(), ErrRejected) {
		t.Error("RemoteError должен оборачивать ErrRejected")
	}
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := New(testSettings(baseURL), &http.Client{Timeout: time.Second}, testLogger())

	resp, err := client.Request(context.Background(), http.MethodGet, "/pdnsadmin/accounts", nil)
	if err != nil {
		t.Fatalf("Request() ошибка транспорта должна быть в Response: %v", err)
	}
	if resp.StatusCode != StatusUnreachable {
		t.Errorf("StatusCode = %d, ожидается %d", resp.StatusCode, StatusUnreachable)
	}
	if !errors.Is(resp.Err, ErrUnavailable) {
		t.Errorf("Err = %v, ожидается ErrUnavailable", resp.Err)
	}

	if _, err := client.ListZones(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ListZones() = %v, ожидается ErrUnavailable", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client := New(testSettings(server.URL), &http.Client{Timeout: 50 * time.Millisecond}, testLogger())

	_, err := client.ListAccounts(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ListAccounts() по таймауту = %v, ожидается ErrUnavailable", err)
	}
}

func TestClient_Misconfigured(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		name     string
		settings Settings
		path     string
	}{
		{"нет URL", Settings{AdminUser: "a", AdminPassword: "b"}, "/pdnsadmin/zones"},
		{"нет admin-пароля", Settings{BaseURL: server.URL, AdminUser: "a", ServerKey: "k"}, "/pdnsadmin/zones"},
		{"нет server-ключа", Settings{BaseURL: server.URL, AdminUser: "a", AdminPassword: "b"}, "/servers/localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.settings, server.Client(), testLogger())
			_, err := client.Request(context.Background(), http.MethodGet, tt.path, nil)
			if !errors.Is(err, ErrMisconfigured) {
				t.Errorf("Request() = %v, ожидается ErrMisconfigured", err)
			}
		})
	}

	if called {
		t.Error("при некорректной настройке сетевой запрос не должен выполняться")
	}
}

func TestClient_ListZones(t *testing.T) {
	client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pdnsadmin/zones" {
			t.Errorf("путь = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id": 1, "name": "acme.test.", "kind": "Native", "dnssec": false, "account": "acme-co"},
			{"id": 2, "name": "free.test", "kind": "Master", "dnssec": true, "account": null}
		]`)
	})

	zones, err := client.ListZones(context.Background())
	if err != nil {
		t.Fatalf("ListZones() ошибка: %v", err)
	}
	if len(zones) != 2 {
		t.Fatalf("len(zones) = %d, ожидается 2", len(zones))
	}
	if zones[0].Account != "acme-co" || zones[0].ID != 1 {
		t.Errorf("zones[0] = %+v", zones[0])
	}
	if zones[1].Account != "" || !zones[1].DNSSEC {
		t.Errorf("zones[1] = %+v", zones[1])
	}
}

func TestClient_UnexpectedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"объект вместо списка", `{"zones": []}`},
		{"строковый id", `[{"id": "one", "name": "acme.test."}]`},
		{"зона без имени", `[{"id": 1, "name": ""}]`},
		{"не JSON", `<html>login</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.ListZones(context.Background())
			if !errors.Is(err, ErrUnexpectedPayload) {
				t.Errorf("ListZones() = %v, ожидается ErrUnexpectedPayload", err)
			}
			if !errors.Is(err, ErrRejected) {
				t.Errorf("ErrUnexpectedPayload должен классифицироваться как ErrRejected")
			}
		})
	}
}

func TestClient_CreateAccount(t *testing.T) {
	var got AccountInput

	client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pdnsadmin/accounts" {
			t.Errorf("запрос %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Account{ID: 17, Name: got.Name, Mail: got.Mail})
	})

	acc, err := client.CreateAccount(context.Background(), AccountInput{Name: "acme-co", Mail: "ops@acme.test"})
	if err != nil {
		t.Fatalf("CreateAccount() ошибка: %v", err)
	}
	if acc.ID != 17 {
		t.Errorf("ID = %d, ожидается 17", acc.ID)
	}
	if got.Name != "acme-co" || got.Mail != "ops@acme.test" {
		t.Errorf("тело запроса = %+v", got)
	}
}

func TestClient_CreateAccountEmptyBodyRefetches(t *testing.T) {
	client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		case r.URL.Path == "/pdnsadmin/accounts/acme-co":
			_, _ = io.WriteString(w, `[{"id": 5, "name": "acme-co"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	acc, err := client.CreateAccount(context.Background(), AccountInput{Name: "acme-co"})
	if err != nil {
		t.Fatalf("CreateAccount() ошибка: %v", err)
	}
	if acc.ID != 5 {
		t.Errorf("ID = %d, ожидается 5 (из повторного чтения)", acc.ID)
	}
}

func TestClient_UpdateAndDeleteAccount(t *testing.T) {
	var calls []string
	client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"msg":"Account not found"}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	if err := client.UpdateAccount(ctx, 9, AccountInput{Name: "acme-co"}); err != nil {
		t.Fatalf("UpdateAccount() ошибка: %v", err)
	}

	err := client.DeleteAccount(ctx, 9)
	if !IsNotFound(err) {
		t.Errorf("DeleteAccount() = %v, ожидается 404", err)
	}

	want := []string{"PUT /pdnsadmin/accounts/9", "DELETE /pdnsadmin/accounts/9"}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("запросы = %v, ожидаются %v", calls, want)
	}
}

func TestClient_CheckReady(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/servers/localhost" {
				_, _ = io.WriteString(w, `{"id":"localhost","version":"4.9.0"}`)
				return
			}
			_, _ = io.WriteString(w, `[]`)
		})
		status, msg := client.CheckReady(context.Background())
		if status != "ok" {
			t.Errorf("CheckReady() = %q (%s), ожидается ok", status, msg)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/servers/localhost" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `[]`)
		})
		if status, _ := client.CheckReady(context.Background()); status != "degraded" {
			t.Errorf("CheckReady() = %q, ожидается degraded", status)
		}
	})

	t.Run("fail", func(t *testing.T) {
		client := setupMockPDNS(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		if status, _ := client.CheckReady(context.Background()); status != "fail" {
			t.Errorf("CheckReady() = %q, ожидается fail", status)
		}
	})
}
