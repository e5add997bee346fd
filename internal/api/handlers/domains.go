// domains.go — обработчики /api/v1/domains.
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/svdleer/pdnsapi-sub000/internal/api/errors"
	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

type createDomainRequest struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Nameservers []string `json:"nameservers"`
	Account     string   `json:"account"`
}

// updateDomainRequest — назначение владельца.
// account_id: число — назначить вручную, null — вернуть владельца из PowerDNS-Admin.
type updateDomainRequest struct {
	AccountID json.RawMessage `json:"account_id"`
}

type domainListResponse struct {
	Items []domainResponse    `json:"items"`
	Total int                 `json:"total"`
	Sync  *syncResultResponse `json:"sync,omitempty"`
}

type domainMutationResponse struct {
	Domain domainResponse       `json:"domain"`
	Sync   *syncOutcomeResponse `json:"sync,omitempty"`
}

type domainDeleteResponse struct {
	Deleted           string               `json:"deleted"`
	AssignmentsPruned int                  `json:"assignments_pruned"`
	Sync              *syncOutcomeResponse `json:"sync,omitempty"`
}

// ListDomains — GET /api/v1/domains[?account_id=&owner_digest=&sync=true].
func (h *APIHandler) ListDomains(w http.ResponseWriter, r *http.Request) {
	doSync, err := queryBool(r, "sync", false)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var filter repository.DomainFilter
	q := r.URL.Query()
	if raw := q.Get("account_id"); raw != "" {
		id, err := parseID(raw, "account_id")
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		filter.AccountID = &id
	}
	if digest := strings.TrimSpace(q.Get("owner_digest")); digest != "" {
		filter.OwnerDigest = &digest
	}

	var resp domainListResponse
	if doSync {
		res, err := h.reconciler.SyncDomains(r.Context(), service.DefaultSyncOptions())
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		resp.Sync = toSyncResultResponse(res)
	}

	domains, err := h.domains.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp.Items = make([]domainResponse, 0, len(domains))
	for _, d := range domains {
		resp.Items = append(resp.Items, toDomainResponse(d))
	}
	resp.Total = len(domains)
	writeJSON(w, http.StatusOK, resp)
}

// GetDomain — GET /api/v1/domains/{id}: id или имя зоны.
func (h *APIHandler) GetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := h.lookupDomain(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDomainResponse(d))
}

func (h *APIHandler) lookupDomain(r *http.Request) (*model.Domain, error) {
	ref := chi.URLParam(r, "id")
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return h.domains.Get(r.Context(), id)
	}
	return h.domains.GetByName(r.Context(), ref)
}

// CreateDomain — POST /api/v1/domains.
func (h *APIHandler) CreateDomain(w http.ResponseWriter, r *http.Request) {
	var req createDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	d, synced, err := h.domains.Create(r.Context(), service.DomainInput{
		Name:        req.Name,
		Kind:        req.Kind,
		Nameservers: req.Nameservers,
		AccountName: req.Account,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, domainMutationResponse{
		Domain: toDomainResponse(d),
		Sync:   toSyncOutcome(synced),
	})
}

// UpdateDomain — PUT /api/v1/domains/{id}: назначение или снятие владельца.
func (h *APIHandler) UpdateDomain(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	var req updateDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if len(req.AccountID) == 0 {
		apierrors.ValidationError(w, "поле account_id обязательно")
		return
	}

	var accountID *int64
	if !bytes.Equal(bytes.TrimSpace(req.AccountID), []byte("null")) {
		var v int64
		if err := json.Unmarshal(req.AccountID, &v); err != nil || v < 1 {
			apierrors.ValidationError(w, "account_id должен быть положительным числом или null")
			return
		}
		accountID = &v
	}

	d, err := h.domains.SetOwner(r.Context(), id, accountID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domainMutationResponse{Domain: toDomainResponse(d)})
}

// DeleteDomain — DELETE /api/v1/domains/{id}.
func (h *APIHandler) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.domains.Delete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domainDeleteResponse{
		Deleted:           res.Domain.Name,
		AssignmentsPruned: res.AssignmentsPruned,
		Sync:              toSyncOutcome(res.Sync),
	})
}
