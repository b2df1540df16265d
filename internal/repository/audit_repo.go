package repository

import (
	"context"

	"tariff-routing-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository persists resolution audit records. Append-only:
// there is no update or delete path.
type AuditRepository interface {
	Create(ctx context.Context, a *domain.ResolutionAudit) error
	ListByTransactionRef(ctx context.Context, transactionRef string) ([]*domain.ResolutionAudit, error)
}

type auditRepo struct {
	db *pgxpool.Pool
}

func NewAuditRepo(db *pgxpool.Pool) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, a *domain.ResolutionAudit) error {
	query := `
		INSERT INTO resolution_audits (
			id, transaction_ref, decision, reason,
			transaction_type, currency, amount,
			tariff_id, fee, net_amount, primary_partner_id, failover_ids,
			config_conflict, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		a.ID, a.TransactionRef, a.Decision, a.Reason,
		a.TransactionType, a.Currency, a.Amount,
		a.TariffID, a.Fee, a.NetAmount, a.PrimaryPartnerID, a.FailoverIDs,
		a.ConfigConflict,
	).Scan(&a.CreatedAt)
}

func (r *auditRepo) ListByTransactionRef(ctx context.Context, transactionRef string) ([]*domain.ResolutionAudit, error) {
	query := `
		SELECT id, transaction_ref, decision, reason,
		       transaction_type, currency, amount,
		       tariff_id, fee, net_amount, primary_partner_id, failover_ids,
		       config_conflict, created_at
		FROM resolution_audits
		WHERE transaction_ref = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, transactionRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*domain.ResolutionAudit
	for rows.Next() {
		var a domain.ResolutionAudit
		if err := rows.Scan(
			&a.ID, &a.TransactionRef, &a.Decision, &a.Reason,
			&a.TransactionType, &a.Currency, &a.Amount,
			&a.TariffID, &a.Fee, &a.NetAmount, &a.PrimaryPartnerID, &a.FailoverIDs,
			&a.ConfigConflict, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		audits = append(audits, &a)
	}
	return audits, rows.Err()
}
