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

type TariffRepository interface {
	Create(ctx context.Context, t *domain.Tariff) error
	GetByID(ctx context.Context, id string) (*domain.Tariff, error)
	List(ctx context.Context, filter *domain.TariffFilter) ([]*domain.Tariff, error)
	ListActive(ctx context.Context) ([]*domain.Tariff, error)
	// Update persists the record only if the stored version still
	// matches t.Version, then bumps it. xerrors.ErrStaleWrite on
	// mismatch.
	Update(ctx context.Context, t *domain.Tariff) error
	// UpdateStatus is the approval transition: a single guarded
	// read-modify-write on (status, version).
	UpdateStatus(ctx context.Context, id string, version int64, status domain.RecordStatus, decidedBy string, reason *string) error
}

type tariffRepo struct {
	db *pgxpool.Pool
}

func NewTariffRepo(db *pgxpool.Pool) TariffRepository {
	return &tariffRepo{db: db}
}

const tariffColumns = `
	id, name, description, transaction_type, currency, user_types, profile_types,
	min_amount, max_amount, partner_id, fee_type, fee_amount, fee_percentage,
	min_fee, max_fee, status, supersedes_id, version, created_by, approved_by,
	created_at, updated_at, approved_at
`

func (r *tariffRepo) Create(ctx context.Context, t *domain.Tariff) error {
	query := `
		INSERT INTO tariffs (
			id, name, description, transaction_type, currency, user_types, profile_types,
			min_amount, max_amount, partner_id, fee_type, fee_amount, fee_percentage,
			min_fee, max_fee, status, supersedes_id, version, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,1,$18,NOW(),NOW())
		RETURNING version, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		t.ID, t.Name, t.Description, t.TransactionType, t.Currency,
		userTypesToStrings(t.UserTypes), profileTypesToStrings(t.ProfileTypes),
		t.MinAmount, t.MaxAmount, t.PartnerID,
		t.FeeType, t.FeeAmount, t.FeePercentage, t.MinFee, t.MaxFee,
		t.Status, t.SupersedesID, t.CreatedBy,
	).Scan(&t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil && xerrors.IsUniqueViolation(err) {
		return fmt.Errorf("%w: tariff %s", xerrors.ErrDuplicateRecord, t.ID)
	}
	return err
}

func (r *tariffRepo) GetByID(ctx context.Context, id string) (*domain.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM tariffs WHERE id = $1`
	row := r.db.QueryRow(ctx, query, id)

	t, err := scanTariff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *tariffRepo) List(ctx context.Context, filter *domain.TariffFilter) ([]*domain.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM tariffs WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filter != nil {
		if filter.TransactionType != nil {
			query += fmt.Sprintf(" AND transaction_type = $%d", i)
			args = append(args, *filter.TransactionType)
			i++
		}
		if filter.Currency != nil {
			query += fmt.Sprintf(" AND currency = $%d", i)
			args = append(args, *filter.Currency)
			i++
		}
		if filter.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", i)
			args = append(args, *filter.Status)
			i++
		}
		if filter.PartnerID != nil {
			query += fmt.Sprintf(" AND partner_id = $%d", i)
			args = append(args, *filter.PartnerID)
			i++
		}
	}

	query += " ORDER BY created_at DESC"
	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", i, i+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tariffs []*domain.Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		tariffs = append(tariffs, t)
	}
	return tariffs, rows.Err()
}

func (r *tariffRepo) ListActive(ctx context.Context) ([]*domain.Tariff, error) {
	status := domain.StatusActive
	return r.List(ctx, &domain.TariffFilter{Status: &status})
}

func (r *tariffRepo) Update(ctx context.Context, t *domain.Tariff) error {
	query := `
		UPDATE tariffs SET
			name = $3, description = $4, transaction_type = $5, currency = $6,
			user_types = $7, profile_types = $8, min_amount = $9, max_amount = $10,
			partner_id = $11, fee_type = $12, fee_amount = $13, fee_percentage = $14,
			min_fee = $15, max_fee = $16, status = $17,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		t.ID, t.Version,
		t.Name, t.Description, t.TransactionType, t.Currency,
		userTypesToStrings(t.UserTypes), profileTypesToStrings(t.ProfileTypes),
		t.MinAmount, t.MaxAmount, t.PartnerID,
		t.FeeType, t.FeeAmount, t.FeePercentage, t.MinFee, t.MaxFee,
		t.Status,
	).Scan(&t.Version, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return staleOrMissing(ctx, r.db, "tariffs", t.ID)
	}
	return err
}

func (r *tariffRepo) UpdateStatus(ctx context.Context, id string, version int64, status domain.RecordStatus, decidedBy string, reason *string) error {
	query := `
		UPDATE tariffs SET
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
		return staleOrMissing(ctx, r.db, "tariffs", id)
	}
	return nil
}

// staleOrMissing distinguishes a version conflict from a missing row
// so callers get the right retry semantics.
func staleOrMissing(ctx context.Context, db *pgxpool.Pool, table, id string) error {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return xerrors.ErrNotFound
	}
	return xerrors.ErrStaleWrite
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTariff(row rowScanner) (*domain.Tariff, error) {
	var t domain.Tariff
	var userTypes, profileTypes []string

	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.TransactionType, &t.Currency,
		&userTypes, &profileTypes,
		&t.MinAmount, &t.MaxAmount, &t.PartnerID,
		&t.FeeType, &t.FeeAmount, &t.FeePercentage, &t.MinFee, &t.MaxFee,
		&t.Status, &t.SupersedesID, &t.Version, &t.CreatedBy, &t.ApprovedBy,
		&t.CreatedAt, &t.UpdatedAt, &t.ApprovedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, s := range userTypes {
		t.UserTypes = append(t.UserTypes, domain.UserType(s))
	}
	for _, s := range profileTypes {
		t.ProfileTypes = append(t.ProfileTypes, domain.ProfileType(s))
	}
	return &t, nil
}

func userTypesToStrings(in []domain.UserType) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}

func profileTypesToStrings(in []domain.ProfileType) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}
