// handler/partner_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tariff-routing-service/internal/domain"
	"tariff-routing-service/pkg/response"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type partnerRequest struct {
	Name         string   `json:"name"`
	Code         string   `json:"code"`
	Kind         string   `json:"kind"`
	Tier         string   `json:"tier"`
	Regions      []string `json:"regions"`
	BaseURL      string   `json:"base_url"`
	ContactEmail string   `json:"contact_email"`
	ContactPhone string   `json:"contact_phone"`

	SupportedServices []string `json:"supported_services"`
	WalletTypes       []string `json:"wallet_types,omitempty"`

	RateLimits  domain.RateLimits  `json:"rate_limits"`
	UsageQuotas domain.UsageQuotas `json:"usage_quotas"`

	CostPerTransaction decimal.Decimal `json:"cost_per_transaction"`
	Priority           int             `json:"priority"`
	FailoverPriority   int             `json:"failover_priority"`
}

func (req *partnerRequest) toDomain(createdBy string) *domain.Partner {
	p := &domain.Partner{
		Name:               req.Name,
		Code:               req.Code,
		Kind:               domain.PartnerKind(req.Kind),
		Tier:               domain.PartnerTier(req.Tier),
		Regions:            req.Regions,
		BaseURL:            req.BaseURL,
		ContactEmail:       req.ContactEmail,
		ContactPhone:       req.ContactPhone,
		SupportedServices:  req.SupportedServices,
		RateLimits:         req.RateLimits,
		UsageQuotas:        req.UsageQuotas,
		CostPerTransaction: req.CostPerTransaction,
		Priority:           req.Priority,
		FailoverPriority:   req.FailoverPriority,
		CreatedBy:          createdBy,
	}
	if p.Tier == "" {
		p.Tier = domain.TierSilver
	}
	for _, wt := range req.WalletTypes {
		p.WalletTypes = append(p.WalletTypes, domain.WalletType(wt))
	}
	return p
}

// CreatePartner submits a new partner into the approval workflow.
func (h *EngineHandler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var req partnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}

	actor, canApprove := actorFromRequest(r)
	partner, err := h.approvalUC.SubmitPartner(r.Context(), req.toDomain(actor), canApprove)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	response.JSON(w, http.StatusCreated, partner)
}

// UpdatePartner submits an edit as a pending revision.
func (h *EngineHandler) UpdatePartner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version, err := versionFromQuery(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var req partnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}

	actor, _ := actorFromRequest(r)
	revision, err := h.approvalUC.EditPartner(r.Context(), id, version, req.toDomain(actor))
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	response.JSON(w, http.StatusAccepted, revision)
}

// DecidePartner approves or rejects a pending partner record.
func (h *EngineHandler) DecidePartner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Approved bool    `json:"approved"`
		Version  int64   `json:"version"`
		Reason   *string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}

	actor, _ := actorFromRequest(r)
	partner, err := h.approvalUC.DecidePartner(r.Context(), &domain.ApprovalDecision{
		TargetID:  id,
		Target:    domain.ApprovalTargetPartner,
		Approved:  req.Approved,
		DecidedBy: actor,
		Reason:    req.Reason,
		Version:   req.Version,
	})
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, partner)
}

// DeactivatePartner retires a partner. Fails while a non-revoked
// PRODUCTION key is outstanding.
func (h *EngineHandler) DeactivatePartner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version, err := versionFromQuery(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := actorFromRequest(r)
	if err := h.approvalUC.DeactivatePartner(r.Context(), id, version, actor); err != nil {
		writeApprovalError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "partner deactivated"})
}

// SuspendPartner toggles suspension without changing approval status.
func (h *EngineHandler) SuspendPartner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Suspend bool    `json:"suspend"`
		Version int64   `json:"version"`
		Reason  *string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if err := h.approvalUC.SuspendPartner(r.Context(), id, req.Version, req.Suspend, req.Reason); err != nil {
		writeApprovalError(w, err)
		return
	}

	msg := "partner suspended"
	if !req.Suspend {
		msg = "partner suspension lifted"
	}
	response.JSON(w, http.StatusOK, map[string]string{"message": msg})
}

// GetPartner fetches one partner with its API keys.
func (h *EngineHandler) GetPartner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	partner, err := h.partnerRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "partner not found")
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.JSON(w, http.StatusOK, partner)
}

// ListPartners returns partners matching the query filters.
func (h *EngineHandler) ListPartners(w http.ResponseWriter, r *http.Request) {
	filter := &domain.PartnerFilter{}
	q := r.URL.Query()

	if v := q.Get("kind"); v != "" {
		kind := domain.PartnerKind(v)
		filter.Kind = &kind
	}
	if v := q.Get("status"); v != "" {
		st := domain.RecordStatus(v)
		filter.Status = &st
	}
	if v := q.Get("region"); v != "" {
		filter.Region = &v
	}
	if v := q.Get("service"); v != "" {
		filter.Service = &v
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	partners, err := h.partnerRepo.List(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to list partners: "+err.Error())
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"partners": partners,
		"count":    len(partners),
	})
}

// IssueAPIKey creates a credential for the partner. The key material
// is returned once and not retrievable afterwards.
func (h *EngineHandler) IssueAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Environment string     `json:"environment"`
		ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}

	env := domain.KeyEnvironment(req.Environment)
	if env != domain.EnvDevelopment && env != domain.EnvProduction {
		response.Error(w, http.StatusBadRequest, "environment must be DEVELOPMENT or PRODUCTION")
		return
	}

	key, err := h.approvalUC.IssueAPIKey(r.Context(), id, env, req.ExpiresAt)
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, map[string]interface{}{
		"key_id":      key.ID,
		"api_key":     key.Key,
		"environment": key.Environment,
		"expires_at":  key.ExpiresAt,
		"message":     "Store the key securely - it won't be shown again.",
	})
}

// RevokeAPIKey revokes a partner credential.
func (h *EngineHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	keyID := chi.URLParam(r, "keyID")

	if err := h.approvalUC.RevokeAPIKey(r.Context(), id, keyID); err != nil {
		writeApprovalError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"message": "API key revoked",
	})
}
