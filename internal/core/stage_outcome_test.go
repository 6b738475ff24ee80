package core

import (
	"context"
	"testing"
	"time"

	"clientpulse/internal/infra/persistence/memory"
	"clientpulse/pkg/domain"
)

func TestOutcomeProgressAveragesMetricRatios(t *testing.T) {
	store := seedPortfolio(t)
	records := runPass(t, store, passTime)

	// met-downtime: latest snapshot 50 against 0..100 contributes 0.5.
	// met-flat: zero span between baseline and target contributes 0.
	progress := findRecord(t, records, domain.EntityOutcome, "out-1", domain.FieldProgressPct)
	if got := numberValue(t, progress); !almostEqual(got, 0.25) {
		t.Fatalf("progress = %v, want 0.25", got)
	}
	if progress.Explanation["metric_count"] != float64(2) {
		t.Fatalf("unexpected metric_count %v", progress.Explanation["metric_count"])
	}
	if progress.Explanation["metrics_with_snapshots"] != float64(2) {
		t.Fatalf("unexpected metrics_with_snapshots %v", progress.Explanation["metrics_with_snapshots"])
	}
	if progress.Explanation["supporting_deliverables"] != float64(1) {
		t.Fatalf("unexpected supporting_deliverables %v", progress.Explanation["supporting_deliverables"])
	}
}

func TestOutcomeConfidenceBlendsCoverageAndRecency(t *testing.T) {
	store := seedPortfolio(t)
	records := runPass(t, store, passTime)

	// Both metrics observed, both 15 days before the pass: coverage 1.0,
	// recency 1 - 15/45 = 2/3, score 0.6*1 + 0.4*(2/3).
	confidence := findRecord(t, records, domain.EntityOutcome, "out-1", domain.FieldConfidenceScore)
	want := 0.6 + 0.4*(1-15.0/45.0)
	if got := numberValue(t, confidence); !almostEqual(got, want) {
		t.Fatalf("confidence = %v, want %v", got, want)
	}
	if cov := confidence.Explanation["coverage"].(float64); !almostEqual(cov, 1) {
		t.Fatalf("coverage = %v, want 1", cov)
	}
}

func TestOutcomeWithoutMetricsScoresZero(t *testing.T) {
	store := seedPortfolio(t)
	store.SetNowFunc(func() time.Time { return seedTime })
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateOutcome(Outcome{
			Base:         domain.Base{ID: "out-empty"},
			EngagementID: "eng-1",
			Title:        "Unmeasured outcome",
		})
		return err
	})
	if err != nil {
		t.Fatalf("create outcome: %v", err)
	}
	records := runPass(t, store, passTime)
	progress := findRecord(t, records, domain.EntityOutcome, "out-empty", domain.FieldProgressPct)
	if got := numberValue(t, progress); got != 0 {
		t.Fatalf("progress = %v, want 0", got)
	}
	confidence := findRecord(t, records, domain.EntityOutcome, "out-empty", domain.FieldConfidenceScore)
	if got := numberValue(t, confidence); got != 0 {
		t.Fatalf("confidence = %v, want 0", got)
	}
}

func TestOutcomeNeverObservedMetricDragsProgress(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	store.SetNowFunc(func() time.Time { return seedTime })
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateAccount(Account{Base: domain.Base{ID: "a"}, Name: "Acme"}); err != nil {
			return err
		}
		if _, err := tx.CreateEngagement(Engagement{Base: domain.Base{ID: "e"}, AccountID: "a", Name: "Eng", StartDate: seedTime}); err != nil {
			return err
		}
		if _, err := tx.CreateOutcome(Outcome{Base: domain.Base{ID: "o"}, EngagementID: "e", Title: "Outcome"}); err != nil {
			return err
		}
		if _, err := tx.CreateKPIMetric(KPIMetric{Base: domain.Base{ID: "m-obs"}, OutcomeID: "o", Name: "observed", Baseline: 0, Target: 10}); err != nil {
			return err
		}
		if _, err := tx.CreateKPIMetric(KPIMetric{Base: domain.Base{ID: "m-silent"}, OutcomeID: "o", Name: "silent", Baseline: 0, Target: 10}); err != nil {
			return err
		}
		_, err := tx.CreateKPISnapshot(KPISnapshot{Base: domain.Base{ID: "s1"}, MetricID: "m-obs", ObservedValue: 10, ObservedAt: date(2026, 2, 1)})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	records := runPass(t, store, passTime)
	progress := findRecord(t, records, domain.EntityOutcome, "o", domain.FieldProgressPct)
	if got := numberValue(t, progress); !almostEqual(got, 0.5) {
		t.Fatalf("progress = %v, want 0.5", got)
	}
	confidence := findRecord(t, records, domain.EntityOutcome, "o", domain.FieldConfidenceScore)
	if cov := confidence.Explanation["coverage"].(float64); !almostEqual(cov, 0.5) {
		t.Fatalf("coverage = %v, want 0.5", cov)
	}
}

func TestLatestSnapshotPrefersNewestObservation(t *testing.T) {
	older := KPISnapshot{Base: domain.Base{ID: "s1"}, ObservedValue: 1, ObservedAt: date(2026, 1, 1)}
	newer := KPISnapshot{Base: domain.Base{ID: "s2"}, ObservedValue: 2, ObservedAt: date(2026, 2, 1)}
	tied := KPISnapshot{Base: domain.Base{ID: "s3"}, ObservedValue: 3, ObservedAt: date(2026, 2, 1)}

	got, ok := latestSnapshot([]KPISnapshot{older, newer, tied})
	if !ok || got.ID != "s3" {
		t.Fatalf("latest = %v %v, want s3", got.ID, ok)
	}
	if _, ok := latestSnapshot(nil); ok {
		t.Fatalf("empty slice should report no snapshot")
	}
}
