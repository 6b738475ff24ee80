package core

import (
	"context"
	"fmt"

	"clientpulse/pkg/domain"
)

// NewMilestoneDatesRule returns the in-transaction rule enforcing milestone
// date sanity: a completion date may never precede the milestone's creation.
func NewMilestoneDatesRule() domain.Rule {
	return milestoneDatesRule{}
}

type milestoneDatesRule struct{}

func (milestoneDatesRule) Name() string { return "milestone_dates" }

func (milestoneDatesRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, m := range view.ListMilestones() {
		if m.DueDate.IsZero() {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "milestone_dates",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("milestone %s (%s) has no due date", m.Title, m.ID),
				Entity:   domain.EntityMilestone,
				EntityID: m.ID,
			})
		}
		if m.CompletionDate != nil && m.CompletionDate.Before(m.CreatedAt) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "milestone_dates",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("milestone %s (%s) completed before it was created", m.Title, m.ID),
				Entity:   domain.EntityMilestone,
				EntityID: m.ID,
			})
		}
	}
	return res, nil
}
