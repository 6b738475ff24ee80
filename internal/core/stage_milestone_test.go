package core

import (
	"testing"

	"clientpulse/pkg/domain"
)

func boolValue(t *testing.T, record DerivedValue) bool {
	t.Helper()
	v, ok := record.Value.(bool)
	if !ok {
		t.Fatalf("expected bool value, got %T", record.Value)
	}
	return v
}

func TestMilestoneAtRiskFlag(t *testing.T) {
	store := seedPortfolio(t)
	records := runPass(t, store, passTime)

	// Blocked, low confidence, due five days out: flagged.
	soon := findRecord(t, records, domain.EntityMilestone, "ms-soon", domain.FieldAtRiskFlag)
	if !boolValue(t, soon) {
		t.Fatalf("ms-soon should be at risk")
	}
	if soon.Explanation["blocked"] != true || soon.Explanation["low_confidence"] != true {
		t.Fatalf("unexpected explanation %+v", soon.Explanation)
	}

	// High confidence and due far outside the horizon: not flagged.
	far := findRecord(t, records, domain.EntityMilestone, "ms-far", domain.FieldAtRiskFlag)
	if boolValue(t, far) {
		t.Fatalf("ms-far should not be at risk")
	}
	if far.Explanation["due_soon"] != false {
		t.Fatalf("ms-far should be outside the horizon: %+v", far.Explanation)
	}

	// Completed milestones are never flagged even when they were late.
	late := findRecord(t, records, domain.EntityMilestone, "ms-late", domain.FieldAtRiskFlag)
	if boolValue(t, late) {
		t.Fatalf("completed milestone should not be at risk")
	}
	if late.Explanation["completed"] != true {
		t.Fatalf("unexpected explanation %+v", late.Explanation)
	}
}

func TestMilestoneAtRiskNeedsBothTriggerAndProximity(t *testing.T) {
	store := seedPortfolio(t)

	// Inside the horizon the far milestone still has no trigger condition.
	records := runPass(t, store, date(2026, 5, 25))
	far := findRecord(t, records, domain.EntityMilestone, "ms-far", domain.FieldAtRiskFlag)
	if boolValue(t, far) {
		t.Fatalf("high-confidence unblocked milestone should not be flagged by proximity alone")
	}
	if far.Explanation["due_soon"] != true {
		t.Fatalf("expected due_soon at this pass time: %+v", far.Explanation)
	}
}
