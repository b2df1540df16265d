// handler/tariff_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tariff-routing-service/internal/domain"
	"tariff-routing-service/pkg/response"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type tariffRequest struct {
	Name            string           `json:"name"`
	Description     *string          `json:"description,omitempty"`
	TransactionType string           `json:"transaction_type"`
	Currency        *string          `json:"currency,omitempty"`
	UserTypes       []string         `json:"user_types,omitempty"`
	ProfileTypes    []string         `json:"profile_types,omitempty"`
	MinAmount       *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount       *decimal.Decimal `json:"max_amount,omitempty"`
	PartnerID       *string          `json:"partner_id,omitempty"`
	FeeType         string           `json:"fee_type"`
	FeeAmount       decimal.Decimal  `json:"fee_amount"`
	FeePercentage   decimal.Decimal  `json:"fee_percentage"`
	MinFee          *decimal.Decimal `json:"min_fee,omitempty"`
	MaxFee          *decimal.Decimal `json:"max_fee,omitempty"`
}

func (req *tariffRequest) toDomain(createdBy string) *domain.Tariff {
	t := &domain.Tariff{
		Name:            req.Name,
		Description:     req.Description,
		TransactionType: domain.TransactionType(req.TransactionType),
		Currency:        req.Currency,
		MinAmount:       req.MinAmount,
		MaxAmount:       req.MaxAmount,
		PartnerID:       req.PartnerID,
		FeeType:         domain.FeeType(req.FeeType),
		FeeAmount:       req.FeeAmount,
		FeePercentage:   req.FeePercentage,
		MinFee:          req.MinFee,
		MaxFee:          req.MaxFee,
		CreatedBy:       createdBy,
	}
	for _, u := range req.UserTypes {
		t.UserTypes = append(t.UserTypes, domain.UserType(u))
	}
	for _, p := range req.ProfileTypes {
		t.ProfileTypes = append(t.ProfileTypes, domain.ProfileType(p))
	}
	return t
}

// CreateTariff submits a new tariff into the approval workflow.
func (h *EngineHandler) CreateTariff(w http.ResponseWriter, r *http.Request) {
	var req tariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}

	actor, canApprove := actorFromRequest(r)
	tariff, err := h.approvalUC.SubmitTariff(r.Context(), req.toDomain(actor), canApprove)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	response.JSON(w, http.StatusCreated, tariff)
}

// UpdateTariff submits an edit as a pending revision. The live
// version keeps serving until the revision is approved.
func (h *EngineHandler) UpdateTariff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version, err := versionFromQuery(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var req tariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request format")
		return
	}

	actor, _ := actorFromRequest(r)
	revision, err := h.approvalUC.EditTariff(r.Context(), id, version, req.toDomain(actor))
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	response.JSON(w, http.StatusAccepted, revision)
}

// DecideTariff approves or rejects a pending tariff.
func (h *EngineHandler) DecideTariff(w http.ResponseWriter, r *http.Request) {
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
	tariff, err := h.approvalUC.DecideTariff(r.Context(), &domain.ApprovalDecision{
		TargetID:  id,
		Target:    domain.ApprovalTargetTariff,
		Approved:  req.Approved,
		DecidedBy: actor,
		Reason:    req.Reason,
		Version:   req.Version,
	})
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, tariff)
}

// DeactivateTariff retires an ACTIVE tariff.
func (h *EngineHandler) DeactivateTariff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version, err := versionFromQuery(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := actorFromRequest(r)
	if err := h.approvalUC.DeactivateTariff(r.Context(), id, version, actor); err != nil {
		writeApprovalError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "tariff deactivated"})
}

// GetTariff fetches one tariff by id.
func (h *EngineHandler) GetTariff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tariff, err := h.tariffRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "tariff not found")
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.JSON(w, http.StatusOK, tariff)
}

// ListTariffs returns tariffs matching the query filters.
func (h *EngineHandler) ListTariffs(w http.ResponseWriter, r *http.Request) {
	filter := &domain.TariffFilter{}
	q := r.URL.Query()

	if v := q.Get("transaction_type"); v != "" {
		tt := domain.TransactionType(v)
		filter.TransactionType = &tt
	}
	if v := q.Get("currency"); v != "" {
		filter.Currency = &v
	}
	if v := q.Get("status"); v != "" {
		st := domain.RecordStatus(v)
		filter.Status = &st
	}
	if v := q.Get("partner_id"); v != "" {
		filter.PartnerID = &v
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

	tariffs, err := h.tariffRepo.List(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to list tariffs: "+err.Error())
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"tariffs": tariffs,
		"count":   len(tariffs),
	})
}

// actorFromRequest reads the acting admin's identity and approval
// rights from headers set by the upstream auth gateway. Auth itself
// is outside this service.
func actorFromRequest(r *http.Request) (string, bool) {
	actor := r.Header.Get("X-Admin-ID")
	if actor == "" {
		actor = "unknown"
	}
	return actor, r.Header.Get("X-Admin-Role") == "approver"
}

func versionFromQuery(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("version")
	if v == "" {
		return 0, errors.New("version query parameter required")
	}
	return strconv.ParseInt(v, 10, 64)
}

func writeApprovalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrStaleWrite):
		response.Error(w, http.StatusConflict, "record changed since read, re-fetch and retry")
	case errors.Is(err, xerrors.ErrSelfApprovalNotAllowed):
		response.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, xerrors.ErrNotPendingApproval),
		errors.Is(err, xerrors.ErrRejectionNoteRequired),
		errors.Is(err, xerrors.ErrInvalidRequest),
		errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrActiveProductionKey),
		errors.Is(err, xerrors.ErrProductionKeyExists),
		errors.Is(err, xerrors.ErrKeyRevoked):
		response.Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, err.Error())
	}
}
