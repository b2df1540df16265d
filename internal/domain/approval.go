// domain/approval.go
package domain

import "time"

// ApprovalTarget names the record kind a change request gates.
type ApprovalTarget string

const (
	ApprovalTargetTariff  ApprovalTarget = "TARIFF"
	ApprovalTargetPartner ApprovalTarget = "PARTNER"
)

// CanTransition encodes the approval state machine:
// PENDING_APPROVAL -> ACTIVE | REJECTED,
// ACTIVE -> PENDING_APPROVAL (edit) | INACTIVE (deactivation),
// REJECTED -> PENDING_APPROVAL (resubmission as a new revision),
// INACTIVE -> PENDING_APPROVAL (reactivation request).
func CanTransition(from, to RecordStatus) bool {
	switch from {
	case StatusPendingApproval:
		return to == StatusActive || to == StatusRejected
	case StatusActive:
		return to == StatusPendingApproval || to == StatusInactive
	case StatusRejected, StatusInactive:
		return to == StatusPendingApproval
	}
	return false
}

// ApprovalDecision is an approver acting on a pending record.
type ApprovalDecision struct {
	TargetID   string         `json:"target_id"`
	Target     ApprovalTarget `json:"target"`
	Approved   bool           `json:"approved"`
	DecidedBy  string         `json:"decided_by"`
	Reason     *string        `json:"reason,omitempty"`
	// Version is the optimistic-concurrency token read alongside the
	// record; the transition is rejected if it has since moved.
	Version   int64     `json:"version"`
	DecidedAt time.Time `json:"decided_at"`
}
