// client.go — HTTP-клиент к API PowerDNS-Admin.
// Две поверхности с независимыми учётными данными:
// admin (/pdnsadmin/*, HTTP Basic) и server (/servers/*, заголовок X-API-Key).
// Операции: Request, ListAccounts, GetAccount, CreateAccount, UpdateAccount,
// DeleteAccount, ListZones, CreateZone, DeleteZone, ServerInfo, CheckReady.
package pdnsadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Surface — поверхность API, определяющая способ авторизации.
type Surface int

const (
	// SurfaceAdmin — /pdnsadmin/*, HTTP Basic.
	SurfaceAdmin Surface = iota
	// SurfaceServer — /servers/*, X-API-Key.
	SurfaceServer
)

func (s Surface) String() string {
	if s == SurfaceServer {
		return "server"
	}
	return "admin"
}

// maxResponseBytes ограничивает размер читаемого тела ответа.
const maxResponseBytes = 32 << 20

// Settings — параметры подключения к PowerDNS-Admin.
type Settings struct {
	// BaseURL — базовый URL API (например, https://dnsadmin.example/api/v1)
	BaseURL string
	// AdminUser, AdminPassword — HTTP Basic для admin-поверхности
	AdminUser     string
	AdminPassword string
	// ServerKey — X-API-Key для server-поверхности
	ServerKey string
	// ServerID — идентификатор сервера PowerDNS (по умолчанию localhost)
	ServerID string
	// ServerPrefixes — префиксы путей server-поверхности (по умолчанию /servers)
	ServerPrefixes []string
}

// Client — HTTP-клиент к API PowerDNS-Admin.
// Безопасен для конкурентного использования.
type Client struct {
	settings   Settings
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент. httpClient задаёт таймаут и TLS; nil — таймаут 30s.
func New(settings Settings, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	settings.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	if settings.ServerID == "" {
		settings.ServerID = "localhost"
	}
	if len(settings.ServerPrefixes) == 0 {
		settings.ServerPrefixes = []string{"/servers"}
	}

	return &Client{
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "pdnsadmin_client")),
	}
}

// BaseURL возвращает базовый URL API.
func (c *Client) BaseURL() string {
	return c.settings.BaseURL
}

// SurfaceFor определяет поверхность по пути запроса.
func (c *Client) SurfaceFor(path string) Surface {
	for _, prefix := range c.settings.ServerPrefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimRight(prefix, "/")+"/") {
			return SurfaceServer
		}
	}
	return SurfaceAdmin
}

// checkConfigured проверяет наличие настроек для поверхности до сетевого запроса.
func (c *Client) checkConfigured(surface Surface) error {
	if c.settings.BaseURL == "" {
		return fmt.Errorf("%w: базовый URL не задан", ErrMisconfigured)
	}
	switch surface {
	case SurfaceServer:
		if c.settings.ServerKey == "" {
			return fmt.Errorf("%w: ключ server-поверхности не задан", ErrMisconfigured)
		}
	default:
		if c.settings.AdminUser == "" || c.settings.AdminPassword == "" {
			return fmt.Errorf("%w: учётные данные admin-поверхности не заданы", ErrMisconfigured)
		}
	}
	return nil
}

// Response — ответ PowerDNS-Admin.
type Response struct {
	// StatusCode — HTTP-статус или StatusUnreachable при сбое транспорта
	StatusCode int
	// Body — тело ответа, если это корректный JSON
	Body json.RawMessage
	// Raw — тело ответа как есть
	Raw []byte
	// Err — ошибка транспорта (оборачивает ErrUnavailable)
	Err error

	method string
	path   string
}

// OK сообщает, что статус ответа 2xx.
func (r *Response) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// AsError возвращает nil для 2xx, ошибку транспорта или *RemoteError.
func (r *Response) AsError() error {
	if r.Err != nil {
		return r.Err
	}
	if r.OK() {
		return nil
	}
	return &RemoteError{
		Method:     r.method,
		Path:       r.path,
		StatusCode: r.StatusCode,
		Body:       r.Body,
		Raw:        r.Raw,
	}
}

// Decode проверяет статус и декодирует тело в target.
// Несоответствие структуры — ErrUnexpectedPayload.
func (r *Response) Decode(target any) error {
	if err := r.AsError(); err != nil {
		return err
	}
	if r.Body == nil {
		return fmt.Errorf("%w: %s %s: тело ответа не JSON", ErrUnexpectedPayload, r.method, r.path)
	}
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnexpectedPayload, r.method, r.path, err)
	}
	return nil
}

// Request выполняет запрос к PowerDNS-Admin с авторизацией по поверхности пути.
// Статус вне 2xx не считается ошибкой: он возвращается в Response.
// Сбой транспорта возвращается как Response со StatusUnreachable и заполненным Err.
// Ошибка возвращается только при некорректной настройке (ErrMisconfigured)
// или невозможности построить запрос.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	surface := c.SurfaceFor(path)
	if err := c.checkConfigured(surface); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.settings.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if surface == SurfaceServer {
		req.Header.Set("X-API-Key", c.settings.ServerKey)
	} else {
		req.SetBasicAuth(c.settings.AdminUser, c.settings.AdminPassword)
	}

	result := &Response{method: method, path: path}
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.StatusCode = StatusUnreachable
		result.Err = fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
		c.logger.Warn("Запрос к PowerDNS-Admin не выполнен",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("surface", surface.String()),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return result, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		result.StatusCode = StatusUnreachable
		result.Err = fmt.Errorf("%w: %s %s: чтение ответа: %v", ErrUnavailable, method, path, err)
		return result, nil
	}

	result.StatusCode = resp.StatusCode
	result.Raw = raw
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && json.Valid(trimmed) {
		result.Body = json.RawMessage(trimmed)
	}

	c.logger.Debug("Запрос к PowerDNS-Admin",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("surface", surface.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// do выполняет запрос и сводит ответ к ошибке.
func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	resp, err := c.Request(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return resp, resp.AsError()
}

// --- Accounts API ---

// ListAccounts возвращает все аккаунты.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/pdnsadmin/accounts", nil)
	if err != nil {
		return nil, err
	}

	var accounts []Account
	if err := resp.Decode(&accounts); err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	for i := range accounts {
		if strings.TrimSpace(accounts[i].Name) == "" {
			return nil, fmt.Errorf("ListAccounts: %w: аккаунт #%d без имени", ErrUnexpectedPayload, i)
		}
	}
	return accounts, nil
}

// GetAccount возвращает аккаунт по имени.
// PowerDNS-Admin отвечает либо объектом, либо списком из одного элемента.
func (c *Client) GetAccount(ctx context.Context, name string) (*Account, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/pdnsadmin/accounts/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}

	if resp.OK() && bytes.HasPrefix(resp.Body, []byte("[")) {
		var list []Account
		if err := resp.Decode(&list); err != nil {
			return nil, fmt.Errorf("GetAccount: %w", err)
		}
		for i := range list {
			if list[i].Name == name {
				return &list[i], nil
			}
		}
		return nil, fmt.Errorf("GetAccount: %w", &RemoteError{
			Method: http.MethodGet, Path: "/pdnsadmin/accounts/" + name,
			StatusCode: http.StatusNotFound, Raw: resp.Raw,
		})
	}

	var account Account
	if err := resp.Decode(&account); err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	if account.Name == "" {
		return nil, fmt.Errorf("GetAccount: %w: аккаунт без имени", ErrUnexpectedPayload)
	}
	return &account, nil
}

// CreateAccount создаёт аккаунт и возвращает его с удалённым id.
// Если PowerDNS-Admin не вернул тело, аккаунт перечитывается по имени.
func (c *Client) CreateAccount(ctx context.Context, input AccountInput) (*Account, error) {
	resp, err := c.do(ctx, http.MethodPost, "/pdnsadmin/accounts", input)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	if resp.Body == nil {
		return c.GetAccount(ctx, input.Name)
	}

	var account Account
	if err := resp.Decode(&account); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}
	if account.Name == "" {
		account.Name = input.Name
	}
	return &account, nil
}

// UpdateAccount изменяет аккаунт по удалённому id.
func (c *Client) UpdateAccount(ctx context.Context, id int64, input AccountInput) error {
	path := "/pdnsadmin/accounts/" + strconv.FormatInt(id, 10)
	if _, err := c.do(ctx, http.MethodPut, path, input); err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	return nil
}

// DeleteAccount удаляет аккаунт по удалённому id.
func (c *Client) DeleteAccount(ctx context.Context, id int64) error {
	path := "/pdnsadmin/accounts/" + strconv.FormatInt(id, 10)
	if _, err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	return nil
}

// --- Zones API ---

// ListZones возвращает все зоны.
func (c *Client) ListZones(ctx context.Context) ([]Zone, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/pdnsadmin/zones", nil)
	if err != nil {
		return nil, err
	}

	var zones []Zone
	if err := resp.Decode(&zones); err != nil {
		return nil, fmt.Errorf("ListZones: %w", err)
	}
	for i := range zones {
		if strings.TrimSpace(zones[i].Name) == "" {
			return nil, fmt.Errorf("ListZones: %w: зона #%d без имени", ErrUnexpectedPayload, i)
		}
	}
	return zones, nil
}

// CreateZone создаёт зону. Если PowerDNS-Admin не вернул тело,
// зона ищется в общем списке по имени.
func (c *Client) CreateZone(ctx context.Context, input ZoneInput) (*Zone, error) {
	resp, err := c.do(ctx, http.MethodPost, "/pdnsadmin/zones", input)
	if err != nil {
		return nil, fmt.Errorf("CreateZone: %w", err)
	}

	if resp.Body == nil {
		zones, err := c.ListZones(ctx)
		if err != nil {
			return nil, fmt.Errorf("CreateZone: %w", err)
		}
		for i := range zones {
			if strings.EqualFold(strings.TrimSuffix(zones[i].Name, "."), strings.TrimSuffix(input.Name, ".")) {
				return &zones[i], nil
			}
		}
		return nil, fmt.Errorf("CreateZone: %w: созданная зона %s не найдена", ErrUnexpectedPayload, input.Name)
	}

	var zone Zone
	if err := resp.Decode(&zone); err != nil {
		return nil, fmt.Errorf("CreateZone: %w", err)
	}
	if zone.Name == "" {
		zone.Name = input.Name
	}
	return &zone, nil
}

// DeleteZone удаляет зону по удалённому id.
func (c *Client) DeleteZone(ctx context.Context, id int64) error {
	path := "/pdnsadmin/zones/" + strconv.FormatInt(id, 10)
	if _, err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("DeleteZone: %w", err)
	}
	return nil
}

// --- Server API ---

// ServerInfo возвращает описание сервера PowerDNS (server-поверхность).
func (c *Client) ServerInfo(ctx context.Context) (*Server, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/servers/"+url.PathEscape(c.settings.ServerID), nil)
	if err != nil {
		return nil, err
	}

	var server Server
	if err := resp.Decode(&server); err != nil {
		return nil, fmt.Errorf("ServerInfo: %w", err)
	}
	return &server, nil
}

// --- Readiness checker ---

// CheckReady проверяет доступность admin-поверхности, затем server-поверхности.
// Недоступная server-поверхность или отсутствие её ключа дают degraded:
// синхронизация работает только через admin-поверхность.
func (c *Client) CheckReady(ctx context.Context) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.Request(ctx, http.MethodGet, "/pdnsadmin/accounts", nil)
	if err != nil {
		return "fail", err.Error()
	}
	if err := resp.AsError(); err != nil {
		return "fail", fmt.Sprintf("admin-поверхность: %v", err)
	}

	server, err := c.ServerInfo(ctx)
	if err != nil {
		return "degraded", fmt.Sprintf("server-поверхность: %v", err)
	}

	return "ok", fmt.Sprintf("PowerDNS %s доступен", server.Version)
}
