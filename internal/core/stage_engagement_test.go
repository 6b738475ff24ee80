package core

import (
	"context"
	"testing"
	"time"

	"clientpulse/pkg/domain"
)

func TestEngagementHealthScore(t *testing.T) {
	store := seedPortfolio(t)
	records := runPass(t, store, passTime)

	// on-time 0.5, avg confidence (1.0+0.6+0.3+1.0)/4 = 0.725, sentiment 0.7;
	// 100*(0.4*0.5 + 0.3*0.725 + 0.3*0.7) = 62.75 minus 8 for the open high
	// risk and 5 for the overdue invoice rounds to 50.
	health := findRecord(t, records, domain.EntityEngagement, "eng-1", domain.FieldEngagementHealth)
	if got := numberValue(t, health); got != 50 {
		t.Fatalf("health = %v, want 50", got)
	}
	if health.Explanation["open_high_risks"] != float64(1) || health.Explanation["overdue_invoices"] != float64(1) {
		t.Fatalf("unexpected explanation %+v", health.Explanation)
	}
	if rate := health.Explanation["on_time_rate"].(float64); !almostEqual(rate, 0.5) {
		t.Fatalf("on_time_rate = %v", rate)
	}
	if conf := health.Explanation["avg_confidence"].(float64); !almostEqual(conf, 0.725) {
		t.Fatalf("avg_confidence = %v", conf)
	}
	if sent := health.Explanation["avg_sentiment"].(float64); !almostEqual(sent, 0.7) {
		t.Fatalf("avg_sentiment = %v", sent)
	}
}

func TestEngagementCompletionRate(t *testing.T) {
	store := seedPortfolio(t)
	records := runPass(t, store, passTime)
	rate := findRecord(t, records, domain.EntityEngagement, "eng-1", domain.FieldCompletionRate)
	if got := numberValue(t, rate); !almostEqual(got, 0.5) {
		t.Fatalf("completion rate = %v, want 0.5", got)
	}
	if rate.Explanation["completed"] != float64(2) || rate.Explanation["milestones"] != float64(4) {
		t.Fatalf("unexpected explanation %+v", rate.Explanation)
	}
}

func TestEngagementHealthImprovesWhenRiskResolves(t *testing.T) {
	store := seedPortfolio(t)
	before := runPass(t, store, passTime)
	baseline := numberValue(t, findRecord(t, before, domain.EntityEngagement, "eng-1", domain.FieldEngagementHealth))

	store.SetNowFunc(func() time.Time { return passTime })
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateRiskIssue("risk-1", func(r *RiskIssue) error {
			r.Status = domain.RiskStatusResolved
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("resolve risk: %v", err)
	}
	after := runPass(t, store, passTime)
	improved := numberValue(t, findRecord(t, after, domain.EntityEngagement, "eng-1", domain.FieldEngagementHealth))
	if improved != baseline+8 {
		t.Fatalf("health after resolving the high risk = %v, want %v", improved, baseline+8)
	}
}

func TestConfidenceWeightDefaultsForUnknownLevel(t *testing.T) {
	policy := DefaultDerivationPolicy()
	if w := confidenceWeight(policy, domain.ConfidenceLevel("Mystery")); w != policy.ConfidenceWeightUnknown {
		t.Fatalf("unknown level weight = %v, want %v", w, policy.ConfidenceWeightUnknown)
	}
	if w := confidenceWeight(policy, domain.ConfidenceHigh); w != policy.ConfidenceWeightHigh {
		t.Fatalf("high weight = %v", w)
	}
}

func TestAverageSentimentClampsOutliers(t *testing.T) {
	stakeholders := []Stakeholder{
		{SentimentScore: 1.8},
		{SentimentScore: -0.4},
		{SentimentScore: 0.5},
	}
	if got := averageSentiment(stakeholders); !almostEqual(got, 0.5) {
		t.Fatalf("average sentiment = %v, want 0.5", got)
	}
	if got := averageSentiment(nil); got != 0 {
		t.Fatalf("empty sentiment = %v, want 0", got)
	}
}
