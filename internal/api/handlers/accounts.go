// accounts.go — обработчики /api/v1/accounts.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/svdleer/pdnsapi-sub000/internal/api/errors"
	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

type createAccountRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Contact     string   `json:"contact"`
	Mail        string   `json:"mail"`
	IPAddresses []string `json:"ip_addresses"`
}

type updateAccountRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Contact     *string   `json:"contact"`
	Mail        *string   `json:"mail"`
	IPAddresses *[]string `json:"ip_addresses"`
}

type accountListResponse struct {
	Items []accountResponse   `json:"items"`
	Total int                 `json:"total"`
	Sync  *syncResultResponse `json:"sync,omitempty"`
}

type accountMutationResponse struct {
	Account accountResponse      `json:"account"`
	Sync    *syncOutcomeResponse `json:"sync,omitempty"`
}

type accountDeleteResponse struct {
	Deleted string               `json:"deleted"`
	Sync    *syncOutcomeResponse `json:"sync,omitempty"`
}

// ListAccounts — GET /api/v1/accounts[?sync=true].
// С sync=true перед выдачей выполняется синхронизация аккаунтов.
func (h *APIHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	doSync, err := queryBool(r, "sync", false)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var resp accountListResponse
	if doSync {
		res, err := h.reconciler.SyncAccounts(r.Context())
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		resp.Sync = toSyncResultResponse(res)
	}

	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp.Items = make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp.Items = append(resp.Items, toAccountResponse(a))
	}
	resp.Total = len(accounts)
	writeJSON(w, http.StatusOK, resp)
}

// GetAccount — GET /api/v1/accounts/{id}: id или имя.
func (h *APIHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.lookupAccount(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *APIHandler) lookupAccount(r *http.Request) (*model.Account, error) {
	ref := chi.URLParam(r, "id")
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return h.accounts.Get(r.Context(), id)
	}
	return h.accounts.GetByName(r.Context(), ref)
}

// CreateAccount — POST /api/v1/accounts.
func (h *APIHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	acc, synced, err := h.accounts.Create(r.Context(), service.AccountInput{
		Name:        req.Name,
		Description: req.Description,
		Contact:     req.Contact,
		Mail:        req.Mail,
		IPAddresses: req.IPAddresses,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountMutationResponse{
		Account: toAccountResponse(acc),
		Sync:    toSyncOutcome(synced),
	})
}

// UpdateAccount — PUT /api/v1/accounts/{id}.
func (h *APIHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	acc, synced, err := h.accounts.Update(r.Context(), id, service.AccountPatch{
		Name:        req.Name,
		Description: req.Description,
		Contact:     req.Contact,
		Mail:        req.Mail,
		IPAddresses: req.IPAddresses,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountMutationResponse{
		Account: toAccountResponse(acc),
		Sync:    toSyncOutcome(synced),
	})
}

// DeleteAccount — DELETE /api/v1/accounts/{id}.
func (h *APIHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	acc, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	synced, err := h.accounts.Delete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountDeleteResponse{
		Deleted: acc.Name,
		Sync:    toSyncOutcome(synced),
	})
}
