package usecase

import (
	"context"
	"sync"
	"time"

	"tariff-routing-service/internal/domain"
	xerrors "tariff-routing-service/pkg/xerrors"
)

// In-memory repository fakes mirroring the SQL implementations'
// version semantics, for tests that exercise the approval and
// resolution flows without a database.

type fakeTariffRepo struct {
	mu      sync.Mutex
	tariffs map[string]*domain.Tariff
}

func newFakeTariffRepo() *fakeTariffRepo {
	return &fakeTariffRepo{tariffs: make(map[string]*domain.Tariff)}
}

func (r *fakeTariffRepo) Create(_ context.Context, t *domain.Tariff) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.Version = 1
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.tariffs[t.ID] = &cp
	return nil
}

func (r *fakeTariffRepo) GetByID(_ context.Context, id string) (*domain.Tariff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tariffs[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTariffRepo) List(_ context.Context, filter *domain.TariffFilter) ([]*domain.Tariff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Tariff
	for _, t := range r.tariffs {
		if filter != nil && filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeTariffRepo) ListActive(ctx context.Context) ([]*domain.Tariff, error) {
	status := domain.StatusActive
	return r.List(ctx, &domain.TariffFilter{Status: &status})
}

func (r *fakeTariffRepo) Update(_ context.Context, t *domain.Tariff) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tariffs[t.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if stored.Version != t.Version {
		return xerrors.ErrStaleWrite
	}
	t.Version++
	t.UpdatedAt = time.Now()
	cp := *t
	r.tariffs[t.ID] = &cp
	return nil
}

func (r *fakeTariffRepo) UpdateStatus(_ context.Context, id string, version int64, status domain.RecordStatus, decidedBy string, _ *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tariffs[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if t.Version != version {
		return xerrors.ErrStaleWrite
	}
	t.Status = status
	if status == domain.StatusActive {
		t.ApprovedBy = &decidedBy
		now := time.Now()
		t.ApprovedAt = &now
	}
	t.Version++
	t.UpdatedAt = time.Now()
	return nil
}

type fakePartnerRepo struct {
	mu       sync.Mutex
	partners map[string]*domain.Partner
}

func newFakePartnerRepo() *fakePartnerRepo {
	return &fakePartnerRepo{partners: make(map[string]*domain.Partner)}
}

func (r *fakePartnerRepo) Create(_ context.Context, p *domain.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.Version = 1
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.partners[p.ID] = &cp
	return nil
}

func (r *fakePartnerRepo) GetByID(_ context.Context, id string) (*domain.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partners[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePartnerRepo) List(_ context.Context, filter *domain.PartnerFilter) ([]*domain.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Partner
	for _, p := range r.partners {
		if filter != nil && filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakePartnerRepo) ListActive(ctx context.Context) ([]*domain.Partner, error) {
	status := domain.StatusActive
	return r.List(ctx, &domain.PartnerFilter{Status: &status})
}

func (r *fakePartnerRepo) Update(_ context.Context, p *domain.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.partners[p.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if stored.Version != p.Version {
		return xerrors.ErrStaleWrite
	}
	p.Version++
	p.UpdatedAt = time.Now()
	cp := *p
	r.partners[p.ID] = &cp
	return nil
}

func (r *fakePartnerRepo) UpdateStatus(_ context.Context, id string, version int64, status domain.RecordStatus, decidedBy string, _ *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partners[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if p.Version != version {
		return xerrors.ErrStaleWrite
	}
	p.Status = status
	if status == domain.StatusActive {
		p.ApprovedBy = &decidedBy
		now := time.Now()
		p.ApprovedAt = &now
	}
	p.Version++
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakePartnerRepo) SetSuspended(_ context.Context, id string, version int64, suspended bool, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partners[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if p.Version != version {
		return xerrors.ErrStaleWrite
	}
	p.IsSuspended = suspended
	p.SuspendedReason = reason
	p.Version++
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakePartnerRepo) CreateAPIKey(_ context.Context, key *domain.PartnerAPIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partners[key.PartnerID]
	if !ok {
		return xerrors.ErrNotFound
	}
	key.CreatedAt = time.Now()
	p.APIKeys = append(p.APIKeys, *key)
	return nil
}

func (r *fakePartnerRepo) ListAPIKeys(_ context.Context, partnerID string) ([]domain.PartnerAPIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partners[partnerID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return append([]domain.PartnerAPIKey(nil), p.APIKeys...), nil
}

func (r *fakePartnerRepo) RevokeAPIKey(_ context.Context, partnerID, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partners[partnerID]
	if !ok {
		return xerrors.ErrNotFound
	}
	for i := range p.APIKeys {
		if p.APIKeys[i].ID == keyID {
			if p.APIKeys[i].IsRevoked {
				return xerrors.ErrKeyRevoked
			}
			now := time.Now()
			p.APIKeys[i].IsRevoked = true
			p.APIKeys[i].IsActive = false
			p.APIKeys[i].RevokedAt = &now
			return nil
		}
	}
	return xerrors.ErrNotFound
}

type fakeAuditRepo struct {
	mu     sync.Mutex
	audits []*domain.ResolutionAudit
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) Create(_ context.Context, a *domain.ResolutionAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.CreatedAt = time.Now()
	cp := *a
	r.audits = append(r.audits, &cp)
	return nil
}

func (r *fakeAuditRepo) ListByTransactionRef(_ context.Context, ref string) ([]*domain.ResolutionAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.ResolutionAudit
	for _, a := range r.audits {
		if a.TransactionRef == ref {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}
