package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/pkg/airtable"
)

// NoValueFromProvider is recorded as the raw provider value when the
// provider had nothing for a field. The audit trail then distinguishes "the
// provider said nothing" from "the provider said an empty string".
const NoValueFromProvider = "No Value From Provider"

// Candidate is one provider-sourced value proposed for a record field.
type Candidate struct {
	// Field is the record-store field name.
	Field string
	// Value is the comparison form of the candidate.
	Value string
	// Write, when non-nil, is the value actually written (numbers and
	// attachment lists). Nil means write Value as a string.
	Write any
	// Raw is the provider's verbatim value for the audit trail. Empty means
	// the provider supplied nothing.
	Raw string
}

// Reconciler applies candidates to records under the field policy.
type Reconciler struct {
	records airtable.Client
	policy  *Policy
}

// New creates a Reconciler.
func New(records airtable.Client, policy *Policy) *Reconciler {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Reconciler{records: records, policy: policy}
}

// Policy exposes the active field policy.
func (r *Reconciler) Policy() *Policy {
	return r.policy
}

// Apply reconciles one candidate against one record. The record is re-read
// immediately before deciding so concurrent updates in the same run are
// seen, not clobbered. The returned FieldUpdate is always populated, even
// when nothing applies.
func (r *Reconciler) Apply(ctx context.Context, recordID string, c Candidate) (model.FieldUpdate, error) {
	raw := c.Raw
	if raw == "" {
		raw = NoValueFromProvider
	}
	fu := model.FieldUpdate{
		Field:            c.Field,
		RecordID:         recordID,
		NewValue:         c.Value,
		RawProviderValue: raw,
	}

	rec, err := r.records.GetRecordByID(ctx, recordID)
	if err != nil {
		return fu, eris.Wrapf(err, "reconcile: read record %s", recordID)
	}
	fu.OldValue = fieldString(rec.Fields[c.Field])

	d := Decide(fu.OldValue, c.Value, r.policy.Overwrite(c.Field))
	fu.Reason = d.Reason
	if !d.Apply {
		return fu, nil
	}

	write := c.Write
	if write == nil {
		write = c.Value
	}
	if _, err := r.records.UpdateRecord(ctx, recordID, map[string]any{c.Field: write}); err != nil {
		return fu, eris.Wrapf(err, "reconcile: update %s on record %s", c.Field, recordID)
	}
	fu.Applied = true

	zap.L().Info("field updated",
		zap.String("record_id", recordID),
		zap.String("field", c.Field),
		zap.String("reason", string(d.Reason)),
	)
	return fu, nil
}

// fieldString renders a stored field value for comparison. Attachment lists
// and other composites compare as empty; their presence is checked by the
// caller, not by value.
func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case []any, map[string]any:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
