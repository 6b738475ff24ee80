package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() RuleView
	CreateAccount(ClientAccount) (ClientAccount, error)
	UpdateAccount(id string, mutator func(*ClientAccount) error) (ClientAccount, error)
	DeleteAccount(id string) error
	CreateEngagement(Engagement) (Engagement, error)
	UpdateEngagement(id string, mutator func(*Engagement) error) (Engagement, error)
	DeleteEngagement(id string) error
	CreateWorkstream(Workstream) (Workstream, error)
	UpdateWorkstream(id string, mutator func(*Workstream) error) (Workstream, error)
	DeleteWorkstream(id string) error
	CreateMilestone(Milestone) (Milestone, error)
	UpdateMilestone(id string, mutator func(*Milestone) error) (Milestone, error)
	DeleteMilestone(id string) error
	CreateDeliverable(Deliverable) (Deliverable, error)
	UpdateDeliverable(id string, mutator func(*Deliverable) error) (Deliverable, error)
	DeleteDeliverable(id string) error
	CreateOutcome(Outcome) (Outcome, error)
	UpdateOutcome(id string, mutator func(*Outcome) error) (Outcome, error)
	DeleteOutcome(id string) error
	CreateKPIMetric(KPIMetric) (KPIMetric, error)
	UpdateKPIMetric(id string, mutator func(*KPIMetric) error) (KPIMetric, error)
	DeleteKPIMetric(id string) error
	CreateKPISnapshot(KPISnapshot) (KPISnapshot, error)
	DeleteKPISnapshot(id string) error
	CreateRiskIssue(RiskIssue) (RiskIssue, error)
	UpdateRiskIssue(id string, mutator func(*RiskIssue) error) (RiskIssue, error)
	DeleteRiskIssue(id string) error
	CreateInvoice(Invoice) (Invoice, error)
	UpdateInvoice(id string, mutator func(*Invoice) error) (Invoice, error)
	DeleteInvoice(id string) error
	CreateStakeholder(Stakeholder) (Stakeholder, error)
	UpdateStakeholder(id string, mutator func(*Stakeholder) error) (Stakeholder, error)
	DeleteStakeholder(id string) error
	CreateRelationLink(RelationLink) (RelationLink, error)
	DeleteRelationLink(id string) error
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers: entity
// CRUD runs through RunInTransaction, reads through View, and the derived
// collection is replaced wholesale after each recomputation pass.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(RuleView) error) error
	ReplaceDerived(ctx context.Context, records []DerivedValue) error
	LookupDerived(key DerivedKey) (DerivedValue, bool)
	DerivedRecords() []DerivedValue
}
