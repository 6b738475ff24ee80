package core

import (
	"sort"
	"time"

	"clientpulse/pkg/domain"
)

// milestoneStage derives at_risk_flag for every milestone.
type milestoneStage struct{}

func (milestoneStage) Name() string { return "milestones" }

func (milestoneStage) Compute(p *Pass) {
	milestones := p.View.ListMilestones()
	sort.Slice(milestones, func(i, j int) bool { return milestones[i].ID < milestones[j].ID })
	horizon := p.Now.Add(time.Duration(p.Policy.AtRiskHorizonDays * 24 * float64(time.Hour)))
	for _, m := range milestones {
		lowConfidence := m.Confidence == domain.ConfidenceLow
		blocked := m.BlockerSummary != ""
		dueSoon := !m.DueDate.After(horizon)
		completed := m.CompletionDate != nil

		atRisk := (lowConfidence || blocked) && dueSoon && !completed

		p.Emit(domain.EntityMilestone, m.ID, domain.FieldAtRiskFlag, atRisk, Explanation{
			"low_confidence":  lowConfidence,
			"blocked":         blocked,
			"due_within_days": p.Policy.AtRiskHorizonDays,
			"due_soon":        dueSoon,
			"completed":       completed,
			"days_until_due":  daysBetween(p.Now, m.DueDate),
		})
	}
}
