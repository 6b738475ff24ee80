package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"clientpulse/pkg/domain"
)

func TestMilestoneDatesRuleBlocksMissingDueDate(t *testing.T) {
	store := seedPortfolio(t)
	store.SetNowFunc(func() time.Time { return passTime })
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateMilestone(Milestone{
			Base:         domain.Base{ID: "ms-undated"},
			WorkstreamID: "ws-1",
			Title:        "Undated milestone",
			Confidence:   domain.ConfidenceMedium,
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if violation.Result.Violations[0].Rule != "milestone_dates" {
		t.Fatalf("unexpected rule %+v", violation.Result.Violations)
	}

	// The blocked transaction must not have committed.
	err = store.View(context.Background(), func(view RuleView) error {
		if _, ok := view.FindMilestone("ms-undated"); ok {
			t.Fatalf("blocked milestone was committed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestMilestoneDatesRuleBlocksCompletionBeforeCreation(t *testing.T) {
	store := seedPortfolio(t)
	store.SetNowFunc(func() time.Time { return passTime })
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateMilestone(Milestone{
			Base:           domain.Base{ID: "ms-warped"},
			WorkstreamID:   "ws-1",
			Title:          "Time traveler",
			DueDate:        date(2026, 4, 1),
			CompletionDate: timePtr(date(2025, 1, 1)),
			Confidence:     domain.ConfidenceHigh,
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
}

func TestInvoiceAmountRuleBlocksNonPositiveAmounts(t *testing.T) {
	store := seedPortfolio(t)
	store.SetNowFunc(func() time.Time { return passTime })
	for _, amount := range []float64{0, -100} {
		_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
			_, err := tx.CreateInvoice(Invoice{
				EngagementID: "eng-1",
				Amount:       amount,
				IssuedAt:     passTime,
				DueDate:      date(2026, 4, 1),
			})
			return err
		})
		var violation domain.RuleViolationError
		if !errors.As(err, &violation) {
			t.Fatalf("amount %v: expected rule violation, got %v", amount, err)
		}
	}
}

func TestRelationIntegrityRuleWarnsWithoutBlocking(t *testing.T) {
	store := seedPortfolio(t)
	rule := NewRelationIntegrityRule()
	err := store.View(context.Background(), func(view RuleView) error {
		overlay := linkOverlayView{RuleView: view, links: []RelationLink{
			{ID: "link-ok", LinkType: domain.LinkDeliverableSupportsOutcome, FromID: "del-1", ToID: "out-1"},
			{ID: "link-dangling", LinkType: domain.LinkDeliverableSupportsOutcome, FromID: "del-gone", ToID: "out-1"},
			{ID: "link-unknown", LinkType: domain.LinkType("mystery"), FromID: "x", ToID: "y"},
		}}
		res, err := rule.Evaluate(context.Background(), overlay, nil)
		if err != nil {
			return err
		}
		if len(res.Violations) != 2 {
			t.Fatalf("expected 2 warnings, got %+v", res.Violations)
		}
		if res.HasBlocking() {
			t.Fatalf("relation warnings must not block")
		}
		for _, v := range res.Violations {
			if v.Severity != domain.SeverityWarn {
				t.Fatalf("unexpected severity %s", v.Severity)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
