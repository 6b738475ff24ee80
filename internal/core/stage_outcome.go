package core

import (
	"sort"

	"clientpulse/pkg/domain"
)

// outcomeStage derives progress_pct and confidence_score for every outcome.
type outcomeStage struct{}

func (outcomeStage) Name() string { return "outcomes" }

func (outcomeStage) Compute(p *Pass) {
	outcomes := p.View.ListOutcomes()
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ID < outcomes[j].ID })
	for _, outcome := range outcomes {
		computeOutcomeProgress(p, outcome)
		computeOutcomeConfidence(p, outcome)
	}
}

// latestSnapshot picks the most recent observation for a metric. Snapshots are
// already sorted by CreatedAt then ID; the max ObservedAt wins, later entries
// break ties.
func latestSnapshot(snapshots []KPISnapshot) (KPISnapshot, bool) {
	var latest KPISnapshot
	found := false
	for _, s := range snapshots {
		if !found || !s.ObservedAt.Before(latest.ObservedAt) {
			latest = s
			found = true
		}
	}
	return latest, found
}

func computeOutcomeProgress(p *Pass, outcome Outcome) {
	metrics := p.Indexes.MetricsByOutcome[outcome.ID]
	contributions := make([]float64, 0, len(metrics))
	withSnapshots := 0
	var sum float64
	for _, metric := range metrics {
		snapshot, ok := latestSnapshot(p.Indexes.SnapshotsByMetric[metric.ID])
		if !ok {
			// A metric that was never observed contributes zero progress.
			contributions = append(contributions, 0)
			continue
		}
		withSnapshots++
		denom := metric.Target - metric.Baseline
		if denom == 0 {
			contributions = append(contributions, 0)
			continue
		}
		ratio := clamp01((snapshot.ObservedValue - metric.Baseline) / denom)
		contributions = append(contributions, ratio)
		sum += ratio
	}

	progress := float64(0)
	if len(metrics) > 0 {
		progress = sum / float64(len(metrics))
	}

	p.Emit(domain.EntityOutcome, outcome.ID, domain.FieldProgressPct, progress, Explanation{
		"metric_count":            float64(len(metrics)),
		"metrics_with_snapshots":  float64(withSnapshots),
		"contributions":           contributions,
		"supporting_deliverables": float64(len(p.Indexes.SupportLinks[outcome.ID])),
	})
}

func computeOutcomeConfidence(p *Pass, outcome Outcome) {
	metrics := p.Indexes.MetricsByOutcome[outcome.ID]
	withSnapshots := 0
	var recencySum float64
	for _, metric := range metrics {
		snapshot, ok := latestSnapshot(p.Indexes.SnapshotsByMetric[metric.ID])
		if !ok {
			continue
		}
		withSnapshots++
		age := daysBetween(snapshot.ObservedAt, p.Now)
		recencySum += clamp01(1 - age/p.Policy.ConfidenceFreshnessDays)
	}

	coverage := float64(0)
	if len(metrics) > 0 {
		coverage = float64(withSnapshots) / float64(len(metrics))
	}
	recency := float64(0)
	if withSnapshots > 0 {
		recency = recencySum / float64(withSnapshots)
	}
	score := p.Policy.ConfidenceCoverageWeight*coverage + p.Policy.ConfidenceRecencyWeight*recency

	p.Emit(domain.EntityOutcome, outcome.ID, domain.FieldConfidenceScore, score, Explanation{
		"coverage":       coverage,
		"recency":        recency,
		"freshness_days": p.Policy.ConfidenceFreshnessDays,
	})
}
