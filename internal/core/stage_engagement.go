package core

import (
	"sort"

	"clientpulse/pkg/domain"
)

// engagementStage derives engagement_health_score and completion_rate.
type engagementStage struct{}

func (engagementStage) Name() string { return "engagements" }

func (engagementStage) Compute(p *Pass) {
	engagements := p.View.ListEngagements()
	sort.Slice(engagements, func(i, j int) bool { return engagements[i].ID < engagements[j].ID })
	for _, engagement := range engagements {
		milestones := engagementMilestones(p, engagement.ID)

		completed := 0
		onTime := 0
		var confidenceSum float64
		for _, m := range milestones {
			confidenceSum += confidenceWeight(p.Policy, m.Confidence)
			if m.CompletionDate == nil {
				continue
			}
			completed++
			if !m.CompletionDate.After(m.DueDate) {
				onTime++
			}
		}

		onTimeRate := float64(0)
		if completed > 0 {
			onTimeRate = float64(onTime) / float64(completed)
		}
		avgConfidence := float64(0)
		if len(milestones) > 0 {
			avgConfidence = confidenceSum / float64(len(milestones))
		}

		sentiment := averageSentiment(p.Indexes.StakeholdersByAccount[engagement.AccountID])

		openHighRisks := 0
		for _, r := range p.Indexes.RisksByEngagement[engagement.ID] {
			if r.Severity == domain.RiskSeverityHigh && r.Status == domain.RiskStatusOpen {
				openHighRisks++
			}
		}
		overdueInvoices := 0
		for _, inv := range p.Indexes.InvoicesByEngagement[engagement.ID] {
			if inv.Overdue(p.Now) {
				overdueInvoices++
			}
		}

		composite := p.Policy.HealthOnTimeWeight*onTimeRate +
			p.Policy.HealthConfidenceWeight*avgConfidence +
			p.Policy.HealthSentimentWeight*sentiment
		score := 100*composite -
			p.Policy.HealthOpenHighRiskPenalty*float64(openHighRisks) -
			p.Policy.HealthOverdueInvoicePenalty*float64(overdueInvoices)

		p.Emit(domain.EntityEngagement, engagement.ID, domain.FieldEngagementHealth, roundClamp100(score), Explanation{
			"on_time_rate":     onTimeRate,
			"avg_confidence":   avgConfidence,
			"avg_sentiment":    sentiment,
			"open_high_risks":  float64(openHighRisks),
			"overdue_invoices": float64(overdueInvoices),
		})

		completionRate := float64(0)
		if len(milestones) > 0 {
			completionRate = float64(completed) / float64(len(milestones))
		}
		p.Emit(domain.EntityEngagement, engagement.ID, domain.FieldCompletionRate, completionRate, Explanation{
			"completed":  float64(completed),
			"milestones": float64(len(milestones)),
		})
	}
}

// engagementMilestones flattens the milestones of every workstream under an engagement.
func engagementMilestones(p *Pass, engagementID string) []Milestone {
	var out []Milestone
	for _, w := range p.Indexes.WorkstreamsByEngagement[engagementID] {
		out = append(out, p.Indexes.MilestonesByWorkstream[w.ID]...)
	}
	return out
}

func confidenceWeight(policy DerivationPolicy, level domain.ConfidenceLevel) float64 {
	switch level {
	case domain.ConfidenceHigh:
		return policy.ConfidenceWeightHigh
	case domain.ConfidenceMedium:
		return policy.ConfidenceWeightMedium
	case domain.ConfidenceLow:
		return policy.ConfidenceWeightLow
	default:
		return policy.ConfidenceWeightUnknown
	}
}

func averageSentiment(stakeholders []Stakeholder) float64 {
	if len(stakeholders) == 0 {
		return 0
	}
	var sum float64
	for _, s := range stakeholders {
		sum += clamp01(s.SentimentScore)
	}
	return sum / float64(len(stakeholders))
}
