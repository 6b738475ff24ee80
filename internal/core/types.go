// Package core hosts the derived-value engine, the transactional service, the
// built-in validation rules, and storage driver selection for clientpulse.
package core

import "clientpulse/pkg/domain"

// Aliases keep service and engine signatures concise while exposing domain
// types from this package.
type (
	Account      = domain.ClientAccount
	Engagement   = domain.Engagement
	Workstream   = domain.Workstream
	Milestone    = domain.Milestone
	Deliverable  = domain.Deliverable
	Outcome      = domain.Outcome
	KPIMetric    = domain.KPIMetric
	KPISnapshot  = domain.KPISnapshot
	RiskIssue    = domain.RiskIssue
	Invoice      = domain.Invoice
	Stakeholder  = domain.Stakeholder
	RelationLink = domain.RelationLink

	EntityType   = domain.EntityType
	Change       = domain.Change
	Violation    = domain.Violation
	Result       = domain.Result
	Rule         = domain.Rule
	RulesEngine  = domain.RulesEngine
	RuleView     = domain.RuleView
	Transaction  = domain.Transaction
	DerivedKey   = domain.DerivedKey
	DerivedValue = domain.DerivedValue
	DerivedField = domain.DerivedField
	Explanation  = domain.Explanation

	PersistentStore = domain.PersistentStore
)

// NewRulesEngine re-exports the domain constructor for callers wiring custom rules.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine builds a rules engine with the built-in validation set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewMilestoneDatesRule())
	engine.Register(NewInvoiceAmountRule())
	engine.Register(NewRelationIntegrityRule())
	return engine
}
