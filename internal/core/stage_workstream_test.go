package core

import (
	"context"
	"reflect"
	"testing"
	"time"

	"clientpulse/pkg/domain"
)

func TestWorkstreamOnTimeRateCountsCompletedOnly(t *testing.T) {
	store := seedPortfolio(t)
	records := runPass(t, store, passTime)

	// Two milestones completed: ms-ontime on schedule, ms-late four days over.
	rate := findRecord(t, records, domain.EntityWorkstream, "ws-1", domain.FieldMilestoneOnTime)
	if got := numberValue(t, rate); !almostEqual(got, 0.5) {
		t.Fatalf("on-time rate = %v, want 0.5", got)
	}
	if rate.Explanation["completed"] != float64(2) || rate.Explanation["on_time"] != float64(1) {
		t.Fatalf("unexpected explanation %+v", rate.Explanation)
	}
	lateIDs, ok := rate.Explanation["late_milestone_ids"].([]string)
	if !ok || !reflect.DeepEqual(lateIDs, []string{"ms-late"}) {
		t.Fatalf("late_milestone_ids = %v", rate.Explanation["late_milestone_ids"])
	}
	slippage, ok := rate.Explanation["slippage_days"].([]float64)
	if !ok || len(slippage) != 1 || !almostEqual(slippage[0], 4) {
		t.Fatalf("slippage_days = %v", rate.Explanation["slippage_days"])
	}
}

func TestWorkstreamWithNoCompletedMilestonesRatesZero(t *testing.T) {
	store := seedPortfolio(t)
	store.SetNowFunc(func() time.Time { return seedTime })
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateWorkstream(Workstream{
			Base:         domain.Base{ID: "ws-fresh"},
			EngagementID: "eng-1",
			Name:         "Fresh workstream",
			Status:       "active",
		}); err != nil {
			return err
		}
		_, err := tx.CreateMilestone(Milestone{
			Base:         domain.Base{ID: "ms-open"},
			WorkstreamID: "ws-fresh",
			Title:        "Kickoff",
			DueDate:      date(2026, 6, 1),
			Confidence:   domain.ConfidenceHigh,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	records := runPass(t, store, passTime)
	rate := findRecord(t, records, domain.EntityWorkstream, "ws-fresh", domain.FieldMilestoneOnTime)
	if got := numberValue(t, rate); got != 0 {
		t.Fatalf("rate = %v, want 0", got)
	}
	if rate.Explanation["completed"] != float64(0) {
		t.Fatalf("unexpected completed count %v", rate.Explanation["completed"])
	}
}
