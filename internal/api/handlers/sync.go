// sync.go — обработчики /api/v1/sync и /api/v1/sync/cleanup.
package handlers

import (
	"fmt"
	"net/http"

	apierrors "github.com/svdleer/pdnsapi-sub000/internal/api/errors"
	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

const collectionAll = "all"

type syncResponse struct {
	Collection string              `json:"collection"`
	Status     string              `json:"status"`
	Accounts   *syncResultResponse `json:"accounts,omitempty"`
	Domains    *syncResultResponse `json:"domains,omitempty"`
}

// RunSync — POST /api/v1/sync?collection=accounts|domains|all[&create_accounts=false].
// Частичный сбой возвращается со статусом 200 и status=partial.
func (h *APIHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	collection := r.URL.Query().Get("collection")
	if collection == "" {
		collection = collectionAll
	}
	createAccounts, err := queryBool(r, "create_accounts", true)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	opts := service.SyncOptions{CreateMissingAccounts: createAccounts}

	resp := syncResponse{Collection: collection}
	var results []*model.SyncResult
	switch collection {
	case model.CollectionAccounts:
		res, err := h.reconciler.SyncAccounts(r.Context())
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		results = append(results, res)
		resp.Accounts = toSyncResultResponse(res)
	case model.CollectionDomains:
		res, err := h.reconciler.SyncDomains(r.Context(), opts)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		results = append(results, res)
		resp.Domains = toSyncResultResponse(res)
	case collectionAll:
		report, err := h.reconciler.SyncAll(r.Context(), opts)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		results = append(results, report.Accounts, report.Domains)
		resp.Accounts = toSyncResultResponse(report.Accounts)
		resp.Domains = toSyncResultResponse(report.Domains)
	default:
		apierrors.ValidationError(w, fmt.Sprintf("неизвестная коллекция %q", collection))
		return
	}

	resp.Status = combinedStatus(results...)
	writeJSON(w, http.StatusOK, resp)
}

// RunCleanup — POST /api/v1/sync/cleanup?dry_run=true|false[&allow_empty=true].
func (h *APIHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	dryRun, err := queryBool(r, "dry_run", false)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	allowEmpty, err := queryBool(r, "allow_empty", false)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.reconciler.Cleanup(r.Context(), service.CleanupOptions{
		DryRun:           dryRun,
		AllowEmptyRemote: allowEmpty,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCleanupResponse(res))
}

// combinedStatus сводит статусы нескольких прогонов: partial важнее changed.
func combinedStatus(results ...*model.SyncResult) string {
	status := model.SyncStatusUnchanged
	for _, res := range results {
		if res == nil {
			continue
		}
		switch res.Status() {
		case model.SyncStatusPartial:
			return model.SyncStatusPartial
		case model.SyncStatusChanged:
			status = model.SyncStatusChanged
		}
	}
	return status
}
