package domain

import "context"

// RuleView provides read-only access to domain entities for rule evaluation
// and for the derivation engine. List order is unspecified; callers that need
// determinism sort the results themselves.
type RuleView interface {
	ListAccounts() []ClientAccount
	ListEngagements() []Engagement
	ListWorkstreams() []Workstream
	ListMilestones() []Milestone
	ListDeliverables() []Deliverable
	ListOutcomes() []Outcome
	ListKPIMetrics() []KPIMetric
	ListKPISnapshots() []KPISnapshot
	ListRiskIssues() []RiskIssue
	ListInvoices() []Invoice
	ListStakeholders() []Stakeholder
	ListRelationLinks() []RelationLink
	FindAccount(id string) (ClientAccount, bool)
	FindEngagement(id string) (Engagement, bool)
	FindWorkstream(id string) (Workstream, bool)
	FindMilestone(id string) (Milestone, bool)
	FindDeliverable(id string) (Deliverable, bool)
	FindOutcome(id string) (Outcome, bool)
	FindKPIMetric(id string) (KPIMetric, bool)
	FindStakeholder(id string) (Stakeholder, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
