// assignments.go — обработчики /api/v1/domain-assignments.
package handlers

import (
	"net/http"

	apierrors "github.com/svdleer/pdnsapi-sub000/internal/api/errors"
	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
)

type createAssignmentRequest struct {
	DomainID   int64  `json:"domain_id"`
	AccountID  int64  `json:"account_id"`
	AssignedBy string `json:"assigned_by"`
}

type assignmentListResponse struct {
	Items []assignmentResponse `json:"items"`
	Total int                  `json:"total"`
}

// ListAssignments — GET /api/v1/domain-assignments[?domain_id=&account_id=].
// С обоими параметрами возвращается одна связь (или NOT_FOUND).
func (h *APIHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	domainRaw, accountRaw := q.Get("domain_id"), q.Get("account_id")

	var (
		views []*model.AssignmentView
		err   error
	)
	switch {
	case domainRaw != "" && accountRaw != "":
		domainID, accountID, perr := assignmentKey(domainRaw, accountRaw)
		if perr != nil {
			apierrors.ValidationError(w, perr.Error())
			return
		}
		var v *model.AssignmentView
		if v, err = h.assignments.Get(r.Context(), domainID, accountID); err == nil {
			views = []*model.AssignmentView{v}
		}
	case domainRaw != "":
		domainID, perr := parseID(domainRaw, "domain_id")
		if perr != nil {
			apierrors.ValidationError(w, perr.Error())
			return
		}
		views, err = h.assignments.ListByDomain(r.Context(), domainID)
	case accountRaw != "":
		accountID, perr := parseID(accountRaw, "account_id")
		if perr != nil {
			apierrors.ValidationError(w, perr.Error())
			return
		}
		views, err = h.assignments.ListByAccount(r.Context(), accountID)
	default:
		views, err = h.assignments.ListAll(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := assignmentListResponse{Items: make([]assignmentResponse, 0, len(views)), Total: len(views)}
	for _, v := range views {
		resp.Items = append(resp.Items, toAssignmentResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateAssignment — POST /api/v1/domain-assignments.
func (h *APIHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.DomainID < 1 || req.AccountID < 1 {
		apierrors.ValidationError(w, "поля domain_id и account_id обязательны")
		return
	}

	v, err := h.assignments.Create(r.Context(), req.DomainID, req.AccountID, req.AssignedBy)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponse(v))
}

// DeleteAssignment — DELETE /api/v1/domain-assignments?domain_id=&account_id=.
func (h *APIHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	domainID, accountID, err := assignmentKey(q.Get("domain_id"), q.Get("account_id"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.assignments.Delete(r.Context(), domainID, accountID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func assignmentKey(domainRaw, accountRaw string) (int64, int64, error) {
	domainID, err := parseID(domainRaw, "domain_id")
	if err != nil {
		return 0, 0, err
	}
	accountID, err := parseID(accountRaw, "account_id")
	if err != nil {
		return 0, 0, err
	}
	return domainID, accountID, nil
}
