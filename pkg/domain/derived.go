package domain

import (
	"encoding/json"
	"time"
)

// DerivedField names a computed attribute written by the derivation engine.
type DerivedField string

// Derived field names, grouped by the entity type they attach to.
const (
	FieldProgressPct       DerivedField = "progress_pct"
	FieldConfidenceScore   DerivedField = "confidence_score"
	FieldMilestoneOnTime   DerivedField = "milestone_on_time_rate"
	FieldAtRiskFlag        DerivedField = "at_risk_flag"
	FieldEngagementHealth  DerivedField = "engagement_health_score"
	FieldCompletionRate    DerivedField = "completion_rate"
	FieldAccountHealth     DerivedField = "health_score"
	FieldRenewalRisk       DerivedField = "renewal_risk_score"
	FieldSegmentTag        DerivedField = "segment_tag"
	FieldDataFreshnessDays DerivedField = "data_freshness_days"
	FieldMissingDataFields DerivedField = "missing_data_fields"
	FieldChurnRisk         DerivedField = "churn_risk_score"
	FieldLTVAtRisk         DerivedField = "ltv_at_risk"
)

// DerivedKey uniquely identifies a derived value: at most one record per key
// exists in a store at any time.
type DerivedKey struct {
	ObjectType EntityType   `json:"object_type"`
	ObjectID   string       `json:"object_id"`
	Field      DerivedField `json:"field"`
}

// Explanation documents the inputs and intermediate aggregates used to compute
// a derived value, sufficient to reproduce the value by hand. Values are
// restricted to JSON primitives and flat arrays of primitives.
type Explanation map[string]any

// DerivedValue is one computed attribute with provenance.
type DerivedValue struct {
	ObjectType  EntityType   `json:"object_type"`
	ObjectID    string       `json:"object_id"`
	Field       DerivedField `json:"field"`
	Value       any          `json:"value"`
	ComputedAt  time.Time    `json:"computed_at"`
	Explanation Explanation  `json:"explanation"`
}

// Key returns the uniqueness key for the record.
func (v DerivedValue) Key() DerivedKey {
	return DerivedKey{ObjectType: v.ObjectType, ObjectID: v.ObjectID, Field: v.Field}
}

// DerivedStore holds derived-value records keyed by (object type, object id,
// field). Upsert replaces on key conflict; iteration order is first-insertion
// order, which keeps repeated passes byte-stable.
type DerivedStore struct {
	records map[DerivedKey]DerivedValue
	order   []DerivedKey
}

// NewDerivedStore constructs an empty derived-value store.
func NewDerivedStore() *DerivedStore {
	return &DerivedStore{records: make(map[DerivedKey]DerivedValue)}
}

// Upsert inserts the record, replacing any existing record with the same key.
func (s *DerivedStore) Upsert(value DerivedValue) {
	key := value.Key()
	if _, exists := s.records[key]; !exists {
		s.order = append(s.order, key)
	}
	s.records[key] = value
}

// Lookup returns the record for the key, or false when absent.
func (s *DerivedStore) Lookup(key DerivedKey) (DerivedValue, bool) {
	v, ok := s.records[key]
	return v, ok
}

// Get is a convenience lookup by the key's parts.
func (s *DerivedStore) Get(objectType EntityType, objectID string, field DerivedField) (DerivedValue, bool) {
	return s.Lookup(DerivedKey{ObjectType: objectType, ObjectID: objectID, Field: field})
}

// Len reports the number of stored records.
func (s *DerivedStore) Len() int {
	return len(s.order)
}

// Records returns the stored values in insertion order.
func (s *DerivedStore) Records() []DerivedValue {
	out := make([]DerivedValue, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.records[key])
	}
	return out
}

// Clone returns a deep copy of the store.
func (s *DerivedStore) Clone() *DerivedStore {
	cp := NewDerivedStore()
	for _, key := range s.order {
		cp.Upsert(cloneDerivedValue(s.records[key]))
	}
	return cp
}

// Reset drops all records, keeping the store usable.
func (s *DerivedStore) Reset() {
	s.records = make(map[DerivedKey]DerivedValue)
	s.order = nil
}

// MarshalJSON serialises the store as an ordered array of records.
func (s *DerivedStore) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Records())
}

// UnmarshalJSON hydrates the store from an ordered array of records.
func (s *DerivedStore) UnmarshalJSON(data []byte) error {
	var records []DerivedValue
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	s.Reset()
	for _, rec := range records {
		s.Upsert(rec)
	}
	return nil
}

func cloneDerivedValue(v DerivedValue) DerivedValue {
	cp := v
	if v.Explanation != nil {
		cp.Explanation = make(Explanation, len(v.Explanation))
		for k, val := range v.Explanation {
			cp.Explanation[k] = cloneExplanationValue(val)
		}
	}
	cp.Value = cloneExplanationValue(v.Value)
	return cp
}

func cloneExplanationValue(v any) any {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...)
	case []float64:
		return append([]float64(nil), vv...)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = cloneExplanationValue(e)
		}
		return out
	default:
		return v
	}
}
