// Пакет pdnsadmin — HTTP-клиент к API PowerDNS-Admin.
// models.go — модели данных PowerDNS-Admin.
package pdnsadmin

// Account — аккаунт PowerDNS-Admin (/pdnsadmin/accounts).
type Account struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Contact     string `json:"contact"`
	Mail        string `json:"mail"`
}

// AccountInput — тело запроса создания или изменения аккаунта.
type AccountInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Contact     string `json:"contact"`
	Mail        string `json:"mail"`
}

// Zone — зона PowerDNS-Admin (/pdnsadmin/zones).
// Account — имя аккаунта-владельца, пустое для зон без владельца.
type Zone struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	DNSSEC  bool   `json:"dnssec"`
	Account string `json:"account"`
}

// ZoneInput — тело запроса создания зоны.
type ZoneInput struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Nameservers []string `json:"nameservers"`
	Account     string   `json:"account,omitempty"`
}

// Server — описание сервера PowerDNS (/servers/{server_id}).
type Server struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	DaemonType string `json:"daemon_type"`
	Version    string `json:"version"`
	URL        string `json:"url"`
}
