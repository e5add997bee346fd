// status.go — обработчик /api/v1/status.
package handlers

import (
	"net/http"
	"time"

	"github.com/svdleer/pdnsapi-sub000/internal/config"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

type surfaceResponse struct {
	Connected bool    `json:"connected"`
	Error     *string `json:"error,omitempty"`
}

type statusResponse struct {
	Service           string          `json:"service"`
	Version           string          `json:"version"`
	BaseURL           string          `json:"base_url"`
	Admin             surfaceResponse `json:"admin"`
	Server            surfaceResponse `json:"server"`
	ServerVersion     *string         `json:"server_version,omitempty"`
	RemoteAccounts    *int            `json:"remote_accounts"`
	LocalAccounts     *int            `json:"local_accounts"`
	LocalDomains      *int            `json:"local_domains"`
	LastAccountSyncAt *time.Time      `json:"last_account_sync_at"`
	LastDomainSyncAt  *time.Time      `json:"last_domain_sync_at"`
}

// GetStatus — GET /api/v1/status. Всегда 200: сбои проверок отражаются в теле.
func (h *APIHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.status.GetStatus(r.Context())
	writeJSON(w, http.StatusOK, statusResponse{
		Service:           serviceName,
		Version:           config.Version,
		BaseURL:           st.BaseURL,
		Admin:             toSurface(st.Admin),
		Server:            toSurface(st.Server),
		ServerVersion:     st.ServerVersion,
		RemoteAccounts:    st.RemoteAccounts,
		LocalAccounts:     st.LocalAccounts,
		LocalDomains:      st.LocalDomains,
		LastAccountSyncAt: st.LastAccountSyncAt,
		LastDomainSyncAt:  st.LastDomainSyncAt,
	})
}

func toSurface(s service.SurfaceStatus) surfaceResponse {
	return surfaceResponse{Connected: s.Connected, Error: s.Error}
}
