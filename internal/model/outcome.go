package model

import "time"

// OutcomeStatus is the terminal state of one place's enrichment.
type OutcomeStatus string

// Per-place terminal states. Skipped covers expected non-work (no name, no
// resolvable place ID); Failed covers provider or persistence faults.
const (
	StatusSucceeded OutcomeStatus = "succeeded"
	StatusCached    OutcomeStatus = "cached"
	StatusSkipped   OutcomeStatus = "skipped"
	StatusFailed    OutcomeStatus = "failed"
)

// UpdateReason records which merge branch decided a field update.
type UpdateReason string

const (
	// ReasonEmptyCandidate: the provider supplied nothing; existing data is
	// never erased.
	ReasonEmptyCandidate UpdateReason = "empty_candidate"
	// ReasonValueMatchesExisting: normalized forms are equal; re-applying the
	// same value is a no-op, which is what makes reconciliation idempotent.
	ReasonValueMatchesExisting UpdateReason = "value_matches_existing"
	// ReasonOverwriteDisabled: the field holds a value and its policy forbids
	// replacement.
	ReasonOverwriteDisabled UpdateReason = "overwrite_disabled_field_has_value"
	// ReasonEmptyOrUnsureSlot: the current value was empty or the Unsure
	// sentinel, an open slot any provider may fill.
	ReasonEmptyOrUnsureSlot UpdateReason = "applied_empty_or_unsure_slot"
	// ReasonAppliedViaOverwrite: the field is overwrite-eligible and the
	// candidate differs.
	ReasonAppliedViaOverwrite UpdateReason = "applied_via_overwrite"
)

// FieldUpdate is the audit record for one reconciliation attempt against one
// record-store field. It is computed fresh each attempt and only returned or
// logged, never persisted on its own.
type FieldUpdate struct {
	Applied          bool         `json:"applied"`
	Field            string       `json:"field_name"`
	RecordID         string       `json:"record_id"`
	OldValue         string       `json:"old_value"`
	NewValue         string       `json:"new_value"`
	RawProviderValue string       `json:"raw_provider_value"`
	Reason           UpdateReason `json:"reason"`
}

// EnrichmentOutcome is one row of a batch result.
type EnrichmentOutcome struct {
	PlaceID      string                 `json:"place_id"`
	PlaceName    string                 `json:"place_name"`
	RecordID     string                 `json:"record_id"`
	Status       OutcomeStatus          `json:"status"`
	Message      string                 `json:"message"`
	FieldUpdates map[string]FieldUpdate `json:"field_updates,omitempty"`
}

// Updated reports whether any field update actually applied.
func (o EnrichmentOutcome) Updated() bool {
	for _, fu := range o.FieldUpdates {
		if fu.Applied {
			return true
		}
	}
	return false
}

// BatchSummary folds per-place outcomes into one batch result.
type BatchSummary struct {
	TotalProcessed int                 `json:"total_processed"`
	TotalUpdated   int                 `json:"total_updated"`
	TotalSkipped   int                 `json:"total_skipped"`
	TotalFailed    int                 `json:"total_failed"`
	Outcomes       []EnrichmentOutcome `json:"outcomes"`
}

// RunStatus tracks a recorded batch run's lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded batch execution (enrich, sync, or status refresh).
type Run struct {
	ID        string        `json:"id"`
	Mode      string        `json:"mode"`
	Provider  string        `json:"provider"`
	City      string        `json:"city"`
	Status    RunStatus     `json:"status"`
	Summary   *BatchSummary `json:"summary,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
