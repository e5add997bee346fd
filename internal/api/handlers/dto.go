// dto.go — JSON-представления ресурсов API.
package handlers

import (
	"time"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/service"
)

type accountResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Contact         string    `json:"contact"`
	Mail            string    `json:"mail"`
	IPAddresses     []string  `json:"ip_addresses"`
	RemoteAccountID *int64    `json:"remote_account_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toAccountResponse(a *model.Account) accountResponse {
	ips := a.IPAddresses
	if ips == nil {
		ips = []string{}
	}
	return accountResponse{
		ID:              a.ID,
		Name:            a.Name,
		Description:     a.Description,
		Contact:         a.Contact,
		Mail:            a.Mail,
		IPAddresses:     ips,
		RemoteAccountID: a.RemoteAccountID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type domainResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	RemoteZoneID *int64 `json:"remote_zone_id"`
	Kind         string `json:"kind"`
	DNSSEC       bool   `json:"dnssec"`
	// Account — владелец в том виде, в каком его вернул PowerDNS-Admin
	Account     string    `json:"account"`
	OwnerDigest *string   `json:"owner_digest"`
	AccountID   *int64    `json:"account_id"`
	OwnerSource string    `json:"owner_source"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toDomainResponse(d *model.Domain) domainResponse {
	return domainResponse{
		ID:           d.ID,
		Name:         d.Name,
		DisplayName:  d.DisplayName(),
		RemoteZoneID: d.RemoteZoneID,
		Kind:         d.Kind,
		DNSSEC:       d.DNSSEC,
		Account:      d.AccountText,
		OwnerDigest:  d.OwnerDigest,
		AccountID:    d.AccountID,
		OwnerSource:  d.OwnerSource,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type assignmentResponse struct {
	DomainID     int64     `json:"domain_id"`
	DomainName   string    `json:"domain_name"`
	RemoteZoneID *int64    `json:"remote_zone_id"`
	AccountID    int64     `json:"account_id"`
	AccountName  string    `json:"account_name"`
	AccountMail  string    `json:"account_mail"`
	AssignedAt   time.Time `json:"assigned_at"`
	AssignedBy   *string   `json:"assigned_by"`
}

func toAssignmentResponse(v *model.AssignmentView) assignmentResponse {
	return assignmentResponse{
		DomainID:     v.DomainID,
		DomainName:   v.DomainName,
		RemoteZoneID: v.RemoteZoneID,
		AccountID:    v.AccountID,
		AccountName:  v.AccountName,
		AccountMail:  v.AccountMail,
		AssignedAt:   v.AssignedAt,
		AssignedBy:   v.AssignedBy,
	}
}

type syncSkipResponse struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func toSkips(skips []model.SyncSkip) []syncSkipResponse {
	out := make([]syncSkipResponse, 0, len(skips))
	for _, s := range skips {
		out = append(out, syncSkipResponse{Key: s.Key, Reason: s.Reason})
	}
	return out
}

type digestCollisionResponse struct {
	Digest string   `json:"digest"`
	Owners []string `json:"owners"`
}

type syncResultResponse struct {
	RunID            string                    `json:"run_id"`
	Collection       string                    `json:"collection"`
	Status           string                    `json:"status"`
	Total            int                       `json:"total"`
	Created          int                       `json:"created"`
	Updated          int                       `json:"updated"`
	Unchanged        int                       `json:"unchanged"`
	Failed           int                       `json:"failed"`
	AccountsCreated  int                       `json:"accounts_created"`
	Skipped          []syncSkipResponse        `json:"skipped"`
	DigestCollisions []digestCollisionResponse `json:"digest_collisions,omitempty"`
	StartedAt        time.Time                 `json:"started_at"`
	CompletedAt      time.Time                 `json:"completed_at"`
}

func toSyncResultResponse(r *model.SyncResult) *syncResultResponse {
	if r == nil {
		return nil
	}
	resp := &syncResultResponse{
		RunID:           r.RunID,
		Collection:      r.Collection,
		Status:          r.Status(),
		Total:           r.Total,
		Created:         r.Created,
		Updated:         r.Updated,
		Unchanged:       r.Unchanged,
		Failed:          r.Failed,
		AccountsCreated: r.AccountsCreated,
		Skipped:         toSkips(r.Skipped),
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
	}
	for _, c := range r.DigestCollisions {
		resp.DigestCollisions = append(resp.DigestCollisions, digestCollisionResponse{Digest: c.Digest, Owners: c.Owners})
	}
	return resp
}

// syncOutcomeResponse — итог автосинхронизации после мутации.
// Ошибка синхронизации передаётся текстом и не меняет статус ответа.
type syncOutcomeResponse struct {
	Result *syncResultResponse `json:"result,omitempty"`
	Error  *string             `json:"error,omitempty"`
}

func toSyncOutcome(o *service.SyncOutcome) *syncOutcomeResponse {
	if o == nil {
		return nil
	}
	resp := &syncOutcomeResponse{Result: toSyncResultResponse(o.Result)}
	if o.Err != nil {
		msg := o.Err.Error()
		resp.Error = &msg
	}
	return resp
}

type cleanupResponse struct {
	RunID             string             `json:"run_id"`
	DryRun            bool               `json:"dry_run"`
	DomainsRemoved    []string           `json:"domains_removed"`
	AccountsRemoved   []string           `json:"accounts_removed"`
	AssignmentsPruned int                `json:"assignments_pruned"`
	Failed            int                `json:"failed"`
	Skipped           []syncSkipResponse `json:"skipped"`
	StartedAt         time.Time          `json:"started_at"`
	CompletedAt       time.Time          `json:"completed_at"`
}

func toCleanupResponse(r *model.CleanupResult) cleanupResponse {
	return cleanupResponse{
		RunID:             r.RunID,
		DryRun:            r.DryRun,
		DomainsRemoved:    nonNil(r.DomainsRemoved),
		AccountsRemoved:   nonNil(r.AccountsRemoved),
		AssignmentsPruned: r.AssignmentsPruned,
		Failed:            r.Failed,
		Skipped:           toSkips(r.Skipped),
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
