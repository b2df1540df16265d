package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE Postgres raises when an insert
// hits a unique constraint.
const pgUniqueViolation = "23505"

// ParsePGErrorCode extracts the SQLSTATE from a pgx error so callers
// can branch on constraint classes without string matching.
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a Postgres unique
// constraint violation.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == pgUniqueViolation
}

// Generic
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalServer  = errors.New("internal server error")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input provided")
	ErrDuplicateRecord = errors.New("record already exists")
)

// Resolution
var (
	ErrNoMatchingTariff   = errors.New("no matching tariff")
	ErrNoPartnerAvailable = errors.New("no eligible partner available")
	ErrFeeExceedsAmount   = errors.New("computed fee exceeds transaction amount")
	ErrUnknownCurrency    = errors.New("unknown currency code")
)

// Approval workflow
var (
	ErrStaleWrite             = errors.New("record version changed since read")
	ErrSelfApprovalNotAllowed = errors.New("submitter cannot approve own change")
	ErrNotPendingApproval     = errors.New("record is not pending approval")
	ErrRejectionNoteRequired  = errors.New("rejection note is required when rejecting")
)

// Partner lifecycle
var (
	ErrPartnerSuspended    = errors.New("partner is suspended")
	ErrActiveProductionKey = errors.New("partner has an active production API key")
	ErrProductionKeyExists = errors.New("partner already has an active production API key")
	ErrKeyRevoked          = errors.New("API key already revoked")
)
