package core

import (
	"context"
	"fmt"

	"clientpulse/pkg/domain"
)

// NewRelationIntegrityRule returns the in-transaction rule reporting relation
// links whose endpoints no longer resolve. Dangling links are warnings, not
// blockers: the engine skips them during derivation.
func NewRelationIntegrityRule() domain.Rule {
	return relationIntegrityRule{}
}

type relationIntegrityRule struct{}

func (relationIntegrityRule) Name() string { return "relation_integrity" }

func (relationIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, link := range view.ListRelationLinks() {
		fromType, toType := link.LinkType.Endpoints()
		if fromType == "" || toType == "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "relation_integrity",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("link %s has unknown type %q", link.ID, link.LinkType),
				Entity:   domain.EntityRelationLink,
				EntityID: link.ID,
			})
			continue
		}
		if !endpointResolves(view, fromType, link.FromID) || !endpointResolves(view, toType, link.ToID) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "relation_integrity",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("link %s references a missing %s or %s instance", link.ID, fromType, toType),
				Entity:   domain.EntityRelationLink,
				EntityID: link.ID,
			})
		}
	}
	return res, nil
}

func endpointResolves(view domain.RuleView, entity domain.EntityType, id string) bool {
	switch entity {
	case domain.EntityDeliverable:
		_, ok := view.FindDeliverable(id)
		return ok
	case domain.EntityOutcome:
		_, ok := view.FindOutcome(id)
		return ok
	default:
		return false
	}
}
