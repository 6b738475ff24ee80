package domain

import "testing"

func TestInferFieldKindSuffixHeuristics(t *testing.T) {
	cases := []struct {
		name string
		want FieldKind
	}{
		{"due_date", FieldDate},
		{"observed_at", FieldDate},
		{"at_risk_flag", FieldBoolean},
		{"is_active", FieldBoolean},
		{"health_score", FieldNumber},
		{"milestone_on_time_rate", FieldNumber},
		{"amount_due", FieldNumber},
		{"estimated_lifetime_value", FieldNumber},
		{"observed_value", FieldNumber},
		{"account_id", FieldReference},
		{"dashboard_link", FieldReference},
		{"organism_ids", FieldTextArray},
		{"blocker_summary", FieldText},
		{"title", FieldText},
	}
	for _, tc := range cases {
		if got := InferFieldKind(tc.name, nil); got != tc.want {
			t.Errorf("InferFieldKind(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestInferFieldKindOverrideWins(t *testing.T) {
	overrides := map[string]FieldKind{"due_date": FieldText}
	if got := InferFieldKind("due_date", overrides); got != FieldText {
		t.Fatalf("expected override to win, got %q", got)
	}
	// overrides only apply to exact names
	if got := InferFieldKind("renewal_date", overrides); got != FieldDate {
		t.Fatalf("expected heuristic for non-overridden name, got %q", got)
	}
}

func TestResultMergeAndBlocking(t *testing.T) {
	var res Result
	res.Merge(Result{})
	if len(res.Violations) != 0 {
		t.Fatalf("merging empty result should not add violations")
	}
	res.Merge(Result{Violations: []Violation{{Rule: "relation_integrity", Severity: SeverityWarn}}})
	if res.HasBlocking() {
		t.Fatalf("warn severity must not block")
	}
	res.Merge(Result{Violations: []Violation{{Rule: "invoice_amounts", Severity: SeverityBlock}}})
	if !res.HasBlocking() {
		t.Fatalf("block severity must block")
	}
}
