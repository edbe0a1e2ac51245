package reconcile

import "github.com/segunak/places-cli/internal/model"

// Decision is the outcome of comparing one candidate value against the
// stored value under a field's overwrite policy.
type Decision struct {
	Apply  bool
	Reason model.UpdateReason
}

// Decide applies the merge rule for one field. A candidate applies only when
// it normalizes to something non-empty and either the current value is an
// open slot (empty or Unsure) or the field allows overwriting and the
// normalized values differ. Nothing here ever erases existing data.
func Decide(current, candidate string, overwrite bool) Decision {
	normCandidate := Normalize(candidate)
	if normCandidate == "" {
		return Decision{Reason: model.ReasonEmptyCandidate}
	}

	if IsEmptyOrUnsure(current) {
		return Decision{Apply: true, Reason: model.ReasonEmptyOrUnsureSlot}
	}

	if Normalize(current) == normCandidate {
		return Decision{Reason: model.ReasonValueMatchesExisting}
	}

	if overwrite {
		return Decision{Apply: true, Reason: model.ReasonAppliedViaOverwrite}
	}
	return Decision{Reason: model.ReasonOverwriteDisabled}
}
