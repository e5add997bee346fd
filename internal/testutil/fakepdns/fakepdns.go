// Пакет fakepdns — поддельный PowerDNS-Admin на httptest для тестов.
// Хранит аккаунты и зоны в памяти, проверяет учётные данные обеих поверхностей
// и позволяет подставлять ответы с ошибками для отдельных маршрутов.
package fakepdns

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/svdleer/pdnsapi-sub000/internal/pdnsadmin"
)

// Учётные данные по умолчанию.
const (
	AdminUser     = "admin"
	AdminPassword = "admin-secret"
	ServerKey     = "server-key"
	ServerID      = "localhost"
)

type failure struct {
	status int
	body   string
}

// Server — поддельный PowerDNS-Admin.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	accounts      []pdnsadmin.Account
	zones         []pdnsadmin.Zone
	nextAccountID int64
	nextZoneID    int64
	failures      map[string]failure
	requests      map[string]int
}

// New запускает сервер и останавливает его по завершении теста.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		nextAccountID: 1,
		nextZoneID:    1,
		failures:      make(map[string]failure),
		requests:      make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /pdnsadmin/accounts", s.listAccounts)
	mux.HandleFunc("GET /pdnsadmin/accounts/{name}", s.getAccount)
	mux.HandleFunc("POST /pdnsadmin/accounts", s.createAccount)
	mux.HandleFunc("PUT /pdnsadmin/accounts/{id}", s.updateAccount)
	mux.HandleFunc("DELETE /pdnsadmin/accounts/{id}", s.deleteAccount)
	mux.HandleFunc("GET /pdnsadmin/zones", s.listZones)
	mux.HandleFunc("POST /pdnsadmin/zones", s.createZone)
	mux.HandleFunc("DELETE /pdnsadmin/zones/{id}", s.deleteZone)
	mux.HandleFunc("GET /servers/{id}", s.serverInfo)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

// Client возвращает клиент, настроенный на этот сервер.
func (s *Server) Client() *pdnsadmin.Client {
	return pdnsadmin.New(pdnsadmin.Settings{
		BaseURL:       s.URL,
		AdminUser:     AdminUser,
		AdminPassword: AdminPassword,
		ServerKey:     ServerKey,
		ServerID:      ServerID,
	}, &http.Client{Timeout: 5 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// AddAccount добавляет аккаунт и возвращает его удалённый id.
func (s *Server) AddAccount(a pdnsadmin.Account) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.nextAccountID
	}
	if a.ID >= s.nextAccountID {
		s.nextAccountID = a.ID + 1
	}
	s.accounts = append(s.accounts, a)
	return a.ID
}

// AddZone добавляет зону и возвращает её удалённый id.
func (s *Server) AddZone(z pdnsadmin.Zone) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z.ID == 0 {
		z.ID = s.nextZoneID
	}
	if z.ID >= s.nextZoneID {
		s.nextZoneID = z.ID + 1
	}
	if z.Kind == "" {
		z.Kind = "Native"
	}
	s.zones = append(s.zones, z)
	return z.ID
}

// SetZoneAccount меняет владельца зоны по имени (как есть, без канонизации).
func (s *Server) SetZoneAccount(name, account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.zones {
		if s.zones[i].Name == name {
			s.zones[i].Account = account
		}
	}
}

// RemoveZone удаляет зону по имени.
func (s *Server) RemoveZone(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.zones {
		if s.zones[i].Name == name {
			s.zones = append(s.zones[:i], s.zones[i+1:]...)
			return
		}
	}
}

// Accounts возвращает копию аккаунтов.
func (s *Server) Accounts() []pdnsadmin.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pdnsadmin.Account(nil), s.accounts...)
}

// Zones возвращает копию зон.
func (s *Server) Zones() []pdnsadmin.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pdnsadmin.Zone(nil), s.zones...)
}

// Fail заставляет маршрут (например, "GET /pdnsadmin/zones") отвечать status и body
// до вызова Recover.
func (s *Server) Fail(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, body: body}
}

// Recover отменяет все подставленные ошибки.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// Requests возвращает количество запросов к маршруту вида "METHOD /path".
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.requests[route]++
		f, failed := s.failures[route]
		s.mu.Unlock()

		if strings.HasPrefix(r.URL.Path, "/servers") {
			if r.Header.Get("X-API-Key") != ServerKey {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
		} else {
			user, pass, ok := r.BasicAuth()
			if !ok || user != AdminUser || pass != AdminPassword {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Basic authentication required"})
				return
			}
		}

		if failed {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) listAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Accounts())
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	for _, a := range s.Accounts() {
		if a.Name == name {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Account not found"})
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var in pdnsadmin.AccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid account"})
		return
	}
	for _, a := range s.Accounts() {
		if a.Name == in.Name {
			writeJSON(w, http.StatusConflict, map[string]string{"msg": "Account already exists"})
			return
		}
	}
	id := s.AddAccount(pdnsadmin.Account{
		Name: in.Name, Description: in.Description, Contact: in.Contact, Mail: in.Mail,
	})
	writeJSON(w, http.StatusCreated, pdnsadmin.Account{
		ID: id, Name: in.Name, Description: in.Description, Contact: in.Contact, Mail: in.Mail,
	})
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	var in pdnsadmin.AccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid account"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts[i].Description = in.Description
			s.accounts[i].Contact = in.Contact
			s.accounts[i].Mail = in.Mail
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Account not found"})
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Account not found"})
}

func (s *Server) listZones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Zones())
}

func (s *Server) createZone(w http.ResponseWriter, r *http.Request) {
	var in pdnsadmin.ZoneInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid zone"})
		return
	}
	for _, z := range s.Zones() {
		if strings.EqualFold(strings.TrimSuffix(z.Name, "."), strings.TrimSuffix(in.Name, ".")) {
			writeJSON(w, http.StatusConflict, map[string]string{"msg": "Domain already exists"})
			return
		}
	}
	kind := in.Kind
	if kind == "" {
		kind = "Native"
	}
	zone := pdnsadmin.Zone{Name: in.Name, Kind: kind, Account: in.Account}
	zone.ID = s.AddZone(zone)
	writeJSON(w, http.StatusCreated, zone)
}

func (s *Server) deleteZone(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.zones {
		if s.zones[i].ID == id {
			s.zones = append(s.zones[:i], s.zones[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Domain not found"})
}

func (s *Server) serverInfo(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != ServerID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, pdnsadmin.Server{
		ID: ServerID, Type: "Server", DaemonType: "authoritative", Version: "4.9.0",
		URL: "/api/v1/servers/" + ServerID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
