// handler/resolution_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tariff-routing-service/internal/domain"
	"tariff-routing-service/internal/usecase"
	"tariff-routing-service/pkg/response"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ResolveFee computes the fee for a transaction context.
func (h *EngineHandler) ResolveFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionRef  string          `json:"transaction_ref"`
		TransactionType string          `json:"transaction_type"`
		Currency        string          `json:"currency"`
		UserType        string          `json:"user_type"`
		ProfileType     string          `json:"profile_type"`
		Amount          decimal.Decimal `json:"amount"`
		PartnerID       *string         `json:"partner_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.TransactionType == "" || req.Currency == "" || req.TransactionRef == "" {
		response.Error(w, http.StatusBadRequest, "transaction_ref, transaction_type and currency are required")
		return
	}

	rctx := &domain.ResolutionContext{
		TransactionRef:  req.TransactionRef,
		TransactionType: domain.TransactionType(req.TransactionType),
		Currency:        req.Currency,
		UserType:        domain.UserType(req.UserType),
		ProfileType:     domain.ProfileType(req.ProfileType),
		Amount:          req.Amount,
		PartnerID:       req.PartnerID,
	}

	breakdown, err := h.resolUC.ResolveFee(r.Context(), rctx)
	if err != nil {
		switch {
		case errors.Is(err, xerrors.ErrNoMatchingTariff):
			response.Error(w, http.StatusNotFound, "no tariff matches this transaction")
		case errors.Is(err, xerrors.ErrFeeExceedsAmount):
			response.Error(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, xerrors.ErrInvalidInput):
			response.Error(w, http.StatusBadRequest, err.Error())
		default:
			response.Error(w, http.StatusInternalServerError, "failed to resolve fee: "+err.Error())
		}
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"tariff_id":  breakdown.TariffID,
		"fee_type":   breakdown.FeeType,
		"fee":        breakdown.Fee,
		"net_amount": breakdown.NetAmount,
		"clamped":    breakdown.Clamped,
	})
}

// RoutePartner selects the primary partner and failover order for a
// service request.
func (h *EngineHandler) RoutePartner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionRef    string          `json:"transaction_ref"`
		Service           string          `json:"service"`
		Region            string          `json:"region"`
		Amount            decimal.Decimal `json:"amount"`
		ExcludePartnerIDs []string        `json:"exclude_partner_ids,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.Service == "" || req.Region == "" || req.TransactionRef == "" {
		response.Error(w, http.StatusBadRequest, "transaction_ref, service and region are required")
		return
	}

	decision, err := h.resolUC.RoutePartner(r.Context(), &domain.RouteRequest{
		TransactionRef:    req.TransactionRef,
		Service:           req.Service,
		Region:            req.Region,
		Amount:            req.Amount,
		ExcludePartnerIDs: req.ExcludePartnerIDs,
	})
	if err != nil {
		if errors.Is(err, xerrors.ErrNoPartnerAvailable) {
			response.Error(w, http.StatusNotFound, "no eligible partner available")
			return
		}
		response.Error(w, http.StatusInternalServerError, "failed to route partner: "+err.Error())
		return
	}

	failoverIDs := make([]string, 0, len(decision.Failovers))
	for _, p := range decision.Failovers {
		failoverIDs = append(failoverIDs, p.ID)
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"primary_partner_id":   decision.Primary.ID,
		"primary_partner_code": decision.Primary.Code,
		"failover_partner_ids": failoverIDs,
	})
}

// RecordUsage reports an executed transaction for quota accounting.
// Safe to retry: duplicate refs are dropped.
func (h *EngineHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartnerID      string          `json:"partner_id"`
		TransactionRef string          `json:"transaction_ref"`
		Amount         decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.PartnerID == "" || req.TransactionRef == "" {
		response.Error(w, http.StatusBadRequest, "partner_id and transaction_ref are required")
		return
	}

	if err := h.resolUC.RecordUsage(r.Context(), req.PartnerID, req.TransactionRef, req.Amount); err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to record usage: "+err.Error())
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"message": "usage recorded",
	})
}

// GetAuditTrail returns every resolution decision for a transaction.
func (h *EngineHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	transactionRef := chi.URLParam(r, "transactionRef")
	if transactionRef == "" {
		response.Error(w, http.StatusBadRequest, "transaction ref required")
		return
	}

	audits, err := h.resolUC.AuditTrail(r.Context(), transactionRef)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "no audit records for transaction")
			return
		}
		response.Error(w, http.StatusInternalServerError, "failed to load audit trail: "+err.Error())
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"transaction_ref": transactionRef,
		"records":         audits,
	})
}

// CheckAdmission runs the quota/rate admission check for one partner
// without routing. The denial payload names the ceiling breached so
// callers can decide between failing and failing over.
func (h *EngineHandler) CheckAdmission(w http.ResponseWriter, r *http.Request) {
	partnerID := chi.URLParam(r, "id")

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}

	partner, err := h.partnerRepo.GetByID(r.Context(), partnerID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "partner not found")
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if partner.IsSuspended {
		response.Error(w, http.StatusForbidden, xerrors.ErrPartnerSuspended.Error())
		return
	}
	partner.ApplyTierDefaults()

	denial, err := h.quota.Admit(r.Context(), partner, req.Amount, time.Now())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "admission check failed: "+err.Error())
		return
	}
	if denial != nil {
		response.JSON(w, denialStatus(denial.Reason), map[string]interface{}{
			"admitted": false,
			"denial":   denial,
		})
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"admitted": true,
	})
}

// denialStatus maps a quota denial onto 429 for rate limits and 403
// for quota ceilings.
func denialStatus(reason usecase.DenialReason) int {
	if reason == usecase.DenialRateLimitExceeded {
		return http.StatusTooManyRequests
	}
	return http.StatusForbidden
}
