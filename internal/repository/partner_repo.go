package repository

import (
	"context"
	"errors"
	"fmt"

	"tariff-routing-service/internal/domain"
	xerrors "tariff-routing-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PartnerRepository interface {
	Create(ctx context.Context, p *domain.Partner) error
	GetByID(ctx context.Context, id string) (*domain.Partner, error)
	List(ctx context.Context, filter *domain.PartnerFilter) ([]*domain.Partner, error)
	ListActive(ctx context.Context) ([]*domain.Partner, error)
	Update(ctx context.Context, p *domain.Partner) error
	UpdateStatus(ctx context.Context, id string, version int64, status domain.RecordStatus, decidedBy string, reason *string) error
	SetSuspended(ctx context.Context, id string, version int64, suspended bool, reason *string) error

	CreateAPIKey(ctx context.Context, key *domain.PartnerAPIKey) error
	ListAPIKeys(ctx context.Context, partnerID string) ([]domain.PartnerAPIKey, error)
	RevokeAPIKey(ctx context.Context, partnerID, keyID string) error
}

type partnerRepo struct {
	db *pgxpool.Pool
}

func NewPartnerRepo(db *pgxpool.Pool) PartnerRepository {
	return &partnerRepo{db: db}
}

const partnerColumns = `
	id, name, code, kind, tier, regions, base_url, contact_email, contact_phone,
	supported_services, wallet_types,
	rate_per_second, rate_per_minute, rate_per_hour, rate_per_day,
	daily_txn_count, daily_volume, monthly_txn_count, max_txn_amount,
	cost_per_transaction, priority, failover_priority,
	status, is_suspended, suspended_reason, supersedes_id, version, created_by, approved_by,
	created_at, updated_at, approved_at
`

func (r *partnerRepo) Create(ctx context.Context, p *domain.Partner) error {
	query := `
		INSERT INTO partners (
			id, name, code, kind, tier, regions, base_url, contact_email, contact_phone,
			supported_services, wallet_types,
			rate_per_second, rate_per_minute, rate_per_hour, rate_per_day,
			daily_txn_count, daily_volume, monthly_txn_count, max_txn_amount,
			cost_per_transaction, priority, failover_priority,
			status, is_suspended, supersedes_id, version, created_by, created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,
			$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,false,$24,1,$25,NOW(),NOW()
		)
		RETURNING version, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID, p.Name, p.Code, p.Kind, p.Tier, p.Regions, p.BaseURL,
		p.ContactEmail, p.ContactPhone,
		p.SupportedServices, walletTypesToStrings(p.WalletTypes),
		p.RateLimits.PerSecond, p.RateLimits.PerMinute, p.RateLimits.PerHour, p.RateLimits.PerDay,
		p.UsageQuotas.DailyTransactionCount, p.UsageQuotas.DailyVolume,
		p.UsageQuotas.MonthlyTransactionCount, p.UsageQuotas.MaxTransactionAmount,
		p.CostPerTransaction, p.Priority, p.FailoverPriority,
		p.Status, p.SupersedesID, p.CreatedBy,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil && xerrors.IsUniqueViolation(err) {
		return fmt.Errorf("%w: partner code %s", xerrors.ErrDuplicateRecord, p.Code)
	}
	return err
}

func (r *partnerRepo) GetByID(ctx context.Context, id string) (*domain.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`
	p, err := scanPartner(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}

	keys, err := r.ListAPIKeys(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load partner API keys: %w", err)
	}
	p.APIKeys = keys
	return p, nil
}

func (r *partnerRepo) List(ctx context.Context, filter *domain.PartnerFilter) ([]*domain.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filter != nil {
		if filter.Kind != nil {
			query += fmt.Sprintf(" AND kind = $%d", i)
			args = append(args, *filter.Kind)
			i++
		}
		if filter.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", i)
			args = append(args, *filter.Status)
			i++
		}
		if filter.Region != nil {
			query += fmt.Sprintf(" AND $%d = ANY(regions)", i)
			args = append(args, *filter.Region)
			i++
		}
		if filter.Service != nil {
			query += fmt.Sprintf(" AND $%d = ANY(supported_services)", i)
			args = append(args, *filter.Service)
			i++
		}
	}

	query += " ORDER BY priority ASC, failover_priority ASC, created_at ASC"
	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", i, i+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []*domain.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (r *partnerRepo) ListActive(ctx context.Context) ([]*domain.Partner, error) {
	status := domain.StatusActive
	return r.List(ctx, &domain.PartnerFilter{Status: &status})
}

func (r *partnerRepo) Update(ctx context.Context, p *domain.Partner) error {
	query := `
		UPDATE partners SET
			name = $3, code = $4, kind = $5, tier = $6, regions = $7, base_url = $8,
			contact_email = $9, contact_phone = $10,
			supported_services = $11, wallet_types = $12,
			rate_per_second = $13, rate_per_minute = $14, rate_per_hour = $15, rate_per_day = $16,
			daily_txn_count = $17, daily_volume = $18, monthly_txn_count = $19, max_txn_amount = $20,
			cost_per_transaction = $21, priority = $22, failover_priority = $23,
			status = $24, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID, p.Version,
		p.Name, p.Code, p.Kind, p.Tier, p.Regions, p.BaseURL,
		p.ContactEmail, p.ContactPhone,
		p.SupportedServices, walletTypesToStrings(p.WalletTypes),
		p.RateLimits.PerSecond, p.RateLimits.PerMinute, p.RateLimits.PerHour, p.RateLimits.PerDay,
		p.UsageQuotas.DailyTransactionCount, p.UsageQuotas.DailyVolume,
		p.UsageQuotas.MonthlyTransactionCount, p.UsageQuotas.MaxTransactionAmount,
		p.CostPerTransaction, p.Priority, p.FailoverPriority,
		p.Status,
	).Scan(&p.Version, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return staleOrMissing(ctx, r.db, "partners", p.ID)
	}
	return err
}

func (r *partnerRepo) UpdateStatus(ctx context.Context, id string, version int64, status domain.RecordStatus, decidedBy string, reason *string) error {
	query := `
		UPDATE partners SET
			status = $3,
			approved_by = CASE WHEN $3 = 'ACTIVE' THEN $4 ELSE approved_by END,
			approved_at = CASE WHEN $3 = 'ACTIVE' THEN NOW() ELSE approved_at END,
			rejection_reason = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	tag, err := r.db.Exec(ctx, query, id, version, status, decidedBy, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return staleOrMissing(ctx, r.db, "partners", id)
	}
	return nil
}

func (r *partnerRepo) SetSuspended(ctx context.Context, id string, version int64, suspended bool, reason *string) error {
	query := `
		UPDATE partners SET
			is_suspended = $3, suspended_reason = $4,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	tag, err := r.db.Exec(ctx, query, id, version, suspended, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return staleOrMissing(ctx, r.db, "partners", id)
	}
	return nil
}

func (r *partnerRepo) CreateAPIKey(ctx context.Context, key *domain.PartnerAPIKey) error {
	query := `
		INSERT INTO partner_api_keys (
			id, partner_id, api_key, environment, is_active, is_revoked, expires_at, created_at
		) VALUES ($1,$2,$3,$4,$5,false,$6,NOW())
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		key.ID, key.PartnerID, key.Key, key.Environment, key.IsActive, key.ExpiresAt,
	).Scan(&key.CreatedAt)
}

func (r *partnerRepo) ListAPIKeys(ctx context.Context, partnerID string) ([]domain.PartnerAPIKey, error) {
	query := `
		SELECT id, partner_id, api_key, environment, is_active, is_revoked,
		       expires_at, created_at, revoked_at
		FROM partner_api_keys
		WHERE partner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.PartnerAPIKey
	for rows.Next() {
		var k domain.PartnerAPIKey
		if err := rows.Scan(
			&k.ID, &k.PartnerID, &k.Key, &k.Environment, &k.IsActive, &k.IsRevoked,
			&k.ExpiresAt, &k.CreatedAt, &k.RevokedAt,
		); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *partnerRepo) RevokeAPIKey(ctx context.Context, partnerID, keyID string) error {
	query := `
		UPDATE partner_api_keys
		SET is_active = false, is_revoked = true, revoked_at = NOW()
		WHERE id = $1 AND partner_id = $2 AND is_revoked = false
	`
	tag, err := r.db.Exec(ctx, query, keyID, partnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrKeyRevoked
	}
	return nil
}

func scanPartner(row rowScanner) (*domain.Partner, error) {
	var p domain.Partner
	var walletTypes []string

	err := row.Scan(
		&p.ID, &p.Name, &p.Code, &p.Kind, &p.Tier, &p.Regions, &p.BaseURL,
		&p.ContactEmail, &p.ContactPhone,
		&p.SupportedServices, &walletTypes,
		&p.RateLimits.PerSecond, &p.RateLimits.PerMinute, &p.RateLimits.PerHour, &p.RateLimits.PerDay,
		&p.UsageQuotas.DailyTransactionCount, &p.UsageQuotas.DailyVolume,
		&p.UsageQuotas.MonthlyTransactionCount, &p.UsageQuotas.MaxTransactionAmount,
		&p.CostPerTransaction, &p.Priority, &p.FailoverPriority,
		&p.Status, &p.IsSuspended, &p.SuspendedReason, &p.SupersedesID, &p.Version, &p.CreatedBy, &p.ApprovedBy,
		&p.CreatedAt, &p.UpdatedAt, &p.ApprovedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, s := range walletTypes {
		p.WalletTypes = append(p.WalletTypes, domain.WalletType(s))
	}
	return &p, nil
}

func walletTypesToStrings(in []domain.WalletType) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}
