package usecase

import (
	"context"
	"fmt"
	"time"

	"tariff-routing-service/internal/domain"
	"tariff-routing-service/internal/repository"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApprovalUsecase gates every configuration change behind the
// PENDING_APPROVAL state machine. Transitions are optimistic: the
// caller supplies the version it read and the repository rejects the
// write if the row has since moved.
type ApprovalUsecase struct {
	tariffRepo  repository.TariffRepository
	partnerRepo repository.PartnerRepository
	logger      *zap.Logger

	// invalidate drops the resolution snapshot after a change goes
	// live. Injected by the server wiring.
	invalidate func()
}

func NewApprovalUsecase(
	tariffRepo repository.TariffRepository,
	partnerRepo repository.PartnerRepository,
	logger *zap.Logger,
) *ApprovalUsecase {
	return &ApprovalUsecase{
		tariffRepo:  tariffRepo,
		partnerRepo: partnerRepo,
		logger:      logger,
		invalidate:  func() {},
	}
}

// OnConfigChange registers the snapshot invalidation hook.
func (uc *ApprovalUsecase) OnConfigChange(fn func()) {
	uc.invalidate = fn
}

// ===============================
// TARIFFS
// ===============================

// SubmitTariff stores a new tariff. It enters PENDING_APPROVAL unless
// the creator holds approval rights, in which case it goes live
// immediately with the creator recorded as approver.
func (uc *ApprovalUsecase) SubmitTariff(ctx context.Context, t *domain.Tariff, creatorCanApprove bool) (*domain.Tariff, error) {
	if err := validateTariff(t); err != nil {
		return nil, fmt.Errorf("invalid tariff: %w", err)
	}

	t.ID = uuid.NewString()
	t.Status = domain.StatusPendingApproval
	if creatorCanApprove {
		t.Status = domain.StatusActive
		t.ApprovedBy = &t.CreatedBy
		now := time.Now()
		t.ApprovedAt = &now
	}

	if err := uc.tariffRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tariff: %w", err)
	}

	if t.Status == domain.StatusActive {
		uc.configChanged("tariff")
	}
	return t, nil
}

// EditTariff submits changes to an existing tariff as a new pending
// revision. The current ACTIVE row keeps serving resolution until the
// revision is approved.
func (uc *ApprovalUsecase) EditTariff(ctx context.Context, id string, version int64, edited *domain.Tariff) (*domain.Tariff, error) {
	current, err := uc.tariffRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != version {
		return nil, xerrors.ErrStaleWrite
	}
	if !domain.CanTransition(current.Status, domain.StatusPendingApproval) {
		return nil, fmt.Errorf("%w: cannot edit tariff in status %s", xerrors.ErrInvalidRequest, current.Status)
	}
	if err := validateTariff(edited); err != nil {
		return nil, fmt.Errorf("invalid tariff: %w", err)
	}

	// Consume the live row's version so a second edit read off the
	// same version fails stale instead of forking another revision.
	if err := uc.tariffRepo.Update(ctx, current); err != nil {
		return nil, err
	}

	edited.ID = uuid.NewString()
	edited.Status = domain.StatusPendingApproval
	edited.SupersedesID = &current.ID
	edited.ApprovedBy = nil
	edited.ApprovedAt = nil

	if err := uc.tariffRepo.Create(ctx, edited); err != nil {
		return nil, fmt.Errorf("failed to create tariff revision: %w", err)
	}
	return edited, nil
}

// DecideTariff approves or rejects a pending tariff. The submitter
// may never decide their own change. On approval the superseded row,
// if any, is retired so only one revision serves at a time.
func (uc *ApprovalUsecase) DecideTariff(ctx context.Context, d *domain.ApprovalDecision) (*domain.Tariff, error) {
	t, err := uc.tariffRepo.GetByID(ctx, d.TargetID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.StatusPendingApproval {
		return nil, xerrors.ErrNotPendingApproval
	}
	if t.CreatedBy == d.DecidedBy {
		return nil, xerrors.ErrSelfApprovalNotAllowed
	}

	if d.Approved {
		if err := uc.tariffRepo.UpdateStatus(ctx, t.ID, d.Version, domain.StatusActive, d.DecidedBy, nil); err != nil {
			return nil, err
		}
		if t.SupersedesID != nil {
			uc.retireSuperseded(ctx, *t.SupersedesID, d.DecidedBy)
		}
	} else {
		if d.Reason == nil || *d.Reason == "" {
			return nil, xerrors.ErrRejectionNoteRequired
		}
		if err := uc.tariffRepo.UpdateStatus(ctx, t.ID, d.Version, domain.StatusRejected, d.DecidedBy, d.Reason); err != nil {
			return nil, err
		}
	}

	uc.configChanged("tariff")
	return uc.tariffRepo.GetByID(ctx, t.ID)
}

// DeactivateTariff takes an ACTIVE tariff out of service. Historical
// audit records keep referencing it; nothing is deleted.
func (uc *ApprovalUsecase) DeactivateTariff(ctx context.Context, id string, version int64, actor string) error {
	t, err := uc.tariffRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(t.Status, domain.StatusInactive) {
		return fmt.Errorf("%w: cannot deactivate tariff in status %s", xerrors.ErrInvalidRequest, t.Status)
	}
	if err := uc.tariffRepo.UpdateStatus(ctx, id, version, domain.StatusInactive, actor, nil); err != nil {
		return err
	}
	uc.configChanged("tariff")
	return nil
}

// ===============================
// PARTNERS
// ===============================

func (uc *ApprovalUsecase) SubmitPartner(ctx context.Context, p *domain.Partner, creatorCanApprove bool) (*domain.Partner, error) {
	if err := validatePartner(p); err != nil {
		return nil, fmt.Errorf("invalid partner: %w", err)
	}

	p.ID = uuid.NewString()
	p.ApplyTierDefaults()
	p.Status = domain.StatusPendingApproval
	if creatorCanApprove {
		p.Status = domain.StatusActive
		p.ApprovedBy = &p.CreatedBy
		now := time.Now()
		p.ApprovedAt = &now
	}

	if err := uc.partnerRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create partner: %w", err)
	}

	if p.Status == domain.StatusActive {
		uc.configChanged("partner")
	}
	return p, nil
}

func (uc *ApprovalUsecase) EditPartner(ctx context.Context, id string, version int64, edited *domain.Partner) (*domain.Partner, error) {
	current, err := uc.partnerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != version {
		return nil, xerrors.ErrStaleWrite
	}
	if !domain.CanTransition(current.Status, domain.StatusPendingApproval) {
		return nil, fmt.Errorf("%w: cannot edit partner in status %s", xerrors.ErrInvalidRequest, current.Status)
	}
	if err := validatePartner(edited); err != nil {
		return nil, fmt.Errorf("invalid partner: %w", err)
	}

	// Same version consumption as tariff edits: one revision per read.
	if err := uc.partnerRepo.Update(ctx, current); err != nil {
		return nil, err
	}

	edited.ID = uuid.NewString()
	edited.ApplyTierDefaults()
	edited.Status = domain.StatusPendingApproval
	edited.SupersedesID = &current.ID
	edited.ApprovedBy = nil
	edited.ApprovedAt = nil

	if err := uc.partnerRepo.Create(ctx, edited); err != nil {
		return nil, fmt.Errorf("failed to create partner revision: %w", err)
	}
	return edited, nil
}

func (uc *ApprovalUsecase) DecidePartner(ctx context.Context, d *domain.ApprovalDecision) (*domain.Partner, error) {
	p, err := uc.partnerRepo.GetByID(ctx, d.TargetID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusPendingApproval {
		return nil, xerrors.ErrNotPendingApproval
	}
	if p.CreatedBy == d.DecidedBy {
		return nil, xerrors.ErrSelfApprovalNotAllowed
	}

	if d.Approved {
		if err := uc.partnerRepo.UpdateStatus(ctx, p.ID, d.Version, domain.StatusActive, d.DecidedBy, nil); err != nil {
			return nil, err
		}
		if p.SupersedesID != nil {
			uc.retireSupersededPartner(ctx, *p.SupersedesID, d.DecidedBy)
		}
	} else {
		if d.Reason == nil || *d.Reason == "" {
			return nil, xerrors.ErrRejectionNoteRequired
		}
		if err := uc.partnerRepo.UpdateStatus(ctx, p.ID, d.Version, domain.StatusRejected, d.DecidedBy, d.Reason); err != nil {
			return nil, err
		}
	}

	uc.configChanged("partner")
	return uc.partnerRepo.GetByID(ctx, p.ID)
}

// DeactivatePartner requires every PRODUCTION API key to be revoked
// first. The precondition is surfaced, never auto-cascaded.
func (uc *ApprovalUsecase) DeactivatePartner(ctx context.Context, id string, version int64, actor string) error {
	p, err := uc.partnerRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(p.Status, domain.StatusInactive) {
		return fmt.Errorf("%w: cannot deactivate partner in status %s", xerrors.ErrInvalidRequest, p.Status)
	}
	if p.HasActiveProductionKey(time.Now()) {
		return xerrors.ErrActiveProductionKey
	}
	if err := uc.partnerRepo.UpdateStatus(ctx, id, version, domain.StatusInactive, actor, nil); err != nil {
		return err
	}
	uc.configChanged("partner")
	return nil
}

// SuspendPartner flips the suspension flag without touching the
// approval status; a suspended partner drops out of routing at once.
func (uc *ApprovalUsecase) SuspendPartner(ctx context.Context, id string, version int64, suspend bool, reason *string) error {
	if suspend && (reason == nil || *reason == "") {
		return fmt.Errorf("%w: suspension reason required", xerrors.ErrInvalidInput)
	}
	if err := uc.partnerRepo.SetSuspended(ctx, id, version, suspend, reason); err != nil {
		return err
	}
	uc.configChanged("partner")
	return nil
}

// ===============================
// API KEYS
// ===============================

// IssueAPIKey creates a credential for the partner. At most one
// active, non-revoked PRODUCTION key may exist at a time.
func (uc *ApprovalUsecase) IssueAPIKey(ctx context.Context, partnerID string, env domain.KeyEnvironment, expiresAt *time.Time) (*domain.PartnerAPIKey, error) {
	p, err := uc.partnerRepo.GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if env == domain.EnvProduction && p.HasActiveProductionKey(time.Now()) {
		return nil, xerrors.ErrProductionKeyExists
	}

	key := &domain.PartnerAPIKey{
		ID:          uuid.NewString(),
		PartnerID:   partnerID,
		Key:         fmt.Sprintf("pk_%s_%s", envKeyPrefix(env), uuid.NewString()),
		Environment: env,
		IsActive:    true,
		ExpiresAt:   expiresAt,
	}
	if err := uc.partnerRepo.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to issue API key: %w", err)
	}

	uc.logger.Info("partner API key issued",
		zap.String("partner_id", partnerID),
		zap.String("key_id", key.ID),
		zap.String("environment", string(env)))
	return key, nil
}

func (uc *ApprovalUsecase) RevokeAPIKey(ctx context.Context, partnerID, keyID string) error {
	if err := uc.partnerRepo.RevokeAPIKey(ctx, partnerID, keyID); err != nil {
		return err
	}
	uc.logger.Info("partner API key revoked",
		zap.String("partner_id", partnerID),
		zap.String("key_id", keyID))
	return nil
}

// ===============================
// HELPERS
// ===============================

func (uc *ApprovalUsecase) retireSuperseded(ctx context.Context, id, actor string) {
	old, err := uc.tariffRepo.GetByID(ctx, id)
	if err != nil {
		uc.logger.Warn("superseded tariff not found", zap.String("tariff_id", id), zap.Error(err))
		return
	}
	if old.Status != domain.StatusActive {
		return
	}
	if err := uc.tariffRepo.UpdateStatus(ctx, old.ID, old.Version, domain.StatusInactive, actor, nil); err != nil {
		uc.logger.Error("failed to retire superseded tariff", zap.String("tariff_id", id), zap.Error(err))
	}
}

func (uc *ApprovalUsecase) retireSupersededPartner(ctx context.Context, id, actor string) {
	old, err := uc.partnerRepo.GetByID(ctx, id)
	if err != nil {
		uc.logger.Warn("superseded partner not found", zap.String("partner_id", id), zap.Error(err))
		return
	}
	if old.Status != domain.StatusActive {
		return
	}
	if err := uc.partnerRepo.UpdateStatus(ctx, old.ID, old.Version, domain.StatusInactive, actor, nil); err != nil {
		uc.logger.Error("failed to retire superseded partner", zap.String("partner_id", id), zap.Error(err))
	}
}

// configChanged drops the resolution snapshot after a change goes
// live, so the next resolve call reads the new configuration.
func (uc *ApprovalUsecase) configChanged(kind string) {
	uc.logger.Debug("configuration changed", zap.String("kind", kind))
	uc.invalidate()
}

func envKeyPrefix(env domain.KeyEnvironment) string {
	if env == domain.EnvProduction {
		return "live"
	}
	return "test"
}

func validateTariff(t *domain.Tariff) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.TransactionType == "" {
		return fmt.Errorf("transaction_type is required")
	}
	if t.FeeType == "" {
		return fmt.Errorf("fee_type is required")
	}
	if t.CreatedBy == "" {
		return fmt.Errorf("created_by is required")
	}
	if t.FeePercentage.IsNegative() || t.FeePercentage.GreaterThan(decimalOne) {
		return fmt.Errorf("fee_percentage must be a fraction in [0,1]")
	}
	if t.FeeAmount.IsNegative() {
		return fmt.Errorf("fee_amount cannot be negative")
	}
	if t.MinFee != nil && t.MinFee.IsNegative() {
		return fmt.Errorf("min_fee cannot be negative")
	}
	if t.MaxFee != nil && t.MaxFee.IsNegative() {
		return fmt.Errorf("max_fee cannot be negative")
	}
	if t.MinFee != nil && t.MaxFee != nil && t.MinFee.GreaterThan(*t.MaxFee) {
		return fmt.Errorf("min_fee cannot be greater than max_fee")
	}
	if t.MinAmount != nil && t.MaxAmount != nil && t.MinAmount.GreaterThan(*t.MaxAmount) {
		return fmt.Errorf("min_amount cannot be greater than max_amount")
	}
	return nil
}

func validatePartner(p *domain.Partner) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Code == "" {
		return fmt.Errorf("code is required")
	}
	if p.Kind != domain.PartnerKindGateway && p.Kind != domain.PartnerKindExternalPayment {
		return fmt.Errorf("kind must be GATEWAY or EXTERNAL_PAYMENT")
	}
	if p.CreatedBy == "" {
		return fmt.Errorf("created_by is required")
	}
	if len(p.SupportedServices) == 0 {
		return fmt.Errorf("at least one supported service is required")
	}
	if len(p.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	if p.Priority < 1 {
		return fmt.Errorf("priority must be 1 or greater")
	}
	return nil
}
