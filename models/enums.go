package models

// RuleScope is the business domain a rule applies to.
type RuleScope string

const (
	RuleScopeLate         RuleScope = "late"
	RuleScopeCancellation RuleScope = "cancellation"
	RuleScopeTask         RuleScope = "task"
	RuleScopeIncident     RuleScope = "incident"
)

func (s RuleScope) Valid() bool {
	switch s {
	case RuleScopeLate, RuleScopeCancellation, RuleScopeTask, RuleScopeIncident:
		return true
	}
	return false
}

type AdjustmentKind string

const (
	AdjustmentKindBasePay           AdjustmentKind = "base_pay"
	AdjustmentKindLatePenalty       AdjustmentKind = "late_penalty"
	AdjustmentKindCancellationFine  AdjustmentKind = "cancellation_fine"
	AdjustmentKindTaskBonus         AdjustmentKind = "task_bonus"
	AdjustmentKindTaskPenalty       AdjustmentKind = "task_penalty"
	AdjustmentKindTaskCompletedZero AdjustmentKind = "task_completed_zero"
)

// IsShiftKind reports whether the at-most-one-per-(shift, kind) invariant
// applies. Task kinds are keyed by task_entry_id instead.
func (k AdjustmentKind) IsShiftKind() bool {
	switch k {
	case AdjustmentKindBasePay, AdjustmentKindLatePenalty, AdjustmentKindCancellationFine:
		return true
	}
	return false
}

// IsPenalty reports whether the amount is negated when the ledger row is
// written. Rule and template amounts are always stored positive; the sign is
// applied in exactly one place (newAdjustment in the workflow package).
func (k AdjustmentKind) IsPenalty() bool {
	switch k {
	case AdjustmentKindLatePenalty, AdjustmentKindCancellationFine, AdjustmentKindTaskPenalty:
		return true
	}
	return false
}

type ShiftStatus string

const (
	ShiftStatusPlanned   ShiftStatus = "planned"
	ShiftStatusActive    ShiftStatus = "active"
	ShiftStatusCompleted ShiftStatus = "completed"
	ShiftStatusCancelled ShiftStatus = "cancelled"
)

// Closed reports whether the shift reached a terminal state and is eligible
// for reconciliation.
func (s ShiftStatus) Closed() bool {
	return s == ShiftStatusCompleted || s == ShiftStatusCancelled
}

// Outbox publish lifecycle for adjustment events.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
