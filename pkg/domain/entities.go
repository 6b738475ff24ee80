// Package domain defines the core business entities, relation links,
// derived-value records, and rule evaluation primitives used by clientpulse.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAccount identifies a client account record.
	EntityAccount EntityType = "client_account"
	// EntityEngagement identifies an engagement record.
	EntityEngagement EntityType = "engagement"
	// EntityWorkstream identifies a workstream record.
	EntityWorkstream EntityType = "workstream"
	// EntityMilestone identifies a milestone record.
	EntityMilestone EntityType = "milestone"
	// EntityDeliverable identifies a deliverable record.
	EntityDeliverable EntityType = "deliverable"
	// EntityOutcome identifies a business outcome record.
	EntityOutcome EntityType = "outcome"
	// EntityKPIMetric identifies a KPI metric definition record.
	EntityKPIMetric EntityType = "kpi_metric"
	// EntityKPISnapshot identifies a KPI observation record.
	EntityKPISnapshot EntityType = "kpi_snapshot"
	// EntityRiskIssue identifies a risk or issue record.
	EntityRiskIssue EntityType = "risk_issue"
	// EntityInvoice identifies an invoice record.
	EntityInvoice EntityType = "invoice"
	// EntityStakeholder identifies a stakeholder record.
	EntityStakeholder EntityType = "stakeholder"
	// EntityRelationLink identifies a typed link between two entity instances.
	EntityRelationLink EntityType = "relation_link"
)

// ConfidenceLevel represents a milestone owner's delivery confidence.
type ConfidenceLevel string

// Canonical confidence levels used in at-risk and health derivations.
const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// RiskSeverity enumerates risk/issue severities consumed by penalty rollups.
type RiskSeverity string

// Canonical risk severities.
const (
	RiskSeverityHigh   RiskSeverity = "high"
	RiskSeverityMedium RiskSeverity = "medium"
	RiskSeverityLow    RiskSeverity = "low"
)

// RiskStatus enumerates the workflow states of a risk or issue.
type RiskStatus string

// Canonical risk statuses; only resolved risks stop contributing penalties.
const (
	RiskStatusOpen       RiskStatus = "open"
	RiskStatusMitigating RiskStatus = "mitigating"
	RiskStatusResolved   RiskStatus = "resolved"
)

// StakeholderRole enumerates stakeholder roles on an account.
type StakeholderRole string

// Canonical stakeholder roles; the executive sponsor feeds renewal risk.
const (
	RoleExecutiveSponsor StakeholderRole = "executive_sponsor"
	RoleChampion         StakeholderRole = "champion"
	RoleDayToDay         StakeholderRole = "day_to_day"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientAccount is the root of the ontology: one customer relationship.
type ClientAccount struct {
	Base
	Name                   string     `json:"name"`
	Industry               string     `json:"industry"`
	Region                 string     `json:"region"`
	EstimatedLifetimeValue float64    `json:"estimated_lifetime_value"`
	RenewalDate            *time.Time `json:"renewal_date"`
}

// Engagement is a contracted body of work under an account.
type Engagement struct {
	Base
	AccountID string     `json:"account_id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// Workstream groups milestones inside an engagement.
type Workstream struct {
	Base
	EngagementID string `json:"engagement_id"`
	Name         string `json:"name"`
	Owner        string `json:"owner"`
	Status       string `json:"status"`
}

// Milestone is a dated commitment within a workstream.
type Milestone struct {
	Base
	WorkstreamID      string          `json:"workstream_id"`
	Title             string          `json:"title"`
	DueDate           time.Time       `json:"due_date"`
	CompletionDate    *time.Time      `json:"completion_date"`
	Confidence        ConfidenceLevel `json:"confidence_level"`
	BlockerSummary    string          `json:"blocker_summary"`
	ClientSignoffDate *time.Time      `json:"client_signoff_date"`
}

// Deliverable is a concrete artifact produced under a milestone. Deliverables
// connect to outcomes through an explicit "supports" relation link rather
// than containment.
type Deliverable struct {
	Base
	MilestoneID  string     `json:"milestone_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	AcceptedDate *time.Time `json:"accepted_date"`
}

// Outcome is a measurable business result an engagement commits to.
type Outcome struct {
	Base
	EngagementID string     `json:"engagement_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	TargetDate   *time.Time `json:"target_date"`
}

// KPIMetric defines how progress toward an outcome is measured.
type KPIMetric struct {
	Base
	OutcomeID string  `json:"outcome_id"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Baseline  float64 `json:"baseline_value"`
	Target    float64 `json:"target_value"`
}

// KPISnapshot is a dated observation of a metric.
type KPISnapshot struct {
	Base
	MetricID      string    `json:"metric_id"`
	ObservedValue float64   `json:"observed_value"`
	ObservedAt    time.Time `json:"observed_at"`
}

// RiskIssue tracks a threat to an engagement.
type RiskIssue struct {
	Base
	EngagementID string       `json:"engagement_id"`
	Title        string       `json:"title"`
	Severity     RiskSeverity `json:"severity"`
	Status       RiskStatus   `json:"status"`
	RaisedAt     time.Time    `json:"raised_at"`
}

// Invoice tracks billing against an engagement. An invoice is overdue when its
// due date has passed and no paid date is set.
type Invoice struct {
	Base
	EngagementID string     `json:"engagement_id"`
	Amount       float64    `json:"amount"`
	IssuedAt     time.Time  `json:"issued_at"`
	DueDate      time.Time  `json:"due_date"`
	PaidDate     *time.Time `json:"paid_date"`
}

// Overdue reports whether the invoice is unpaid past its due date as of now.
func (i Invoice) Overdue(now time.Time) bool {
	return i.PaidDate == nil && i.DueDate.Before(now)
}

// Stakeholder is a named contact on an account with a tracked sentiment.
type Stakeholder struct {
	Base
	AccountID       string          `json:"account_id"`
	Name            string          `json:"name"`
	Role            StakeholderRole `json:"role"`
	SentimentScore  float64         `json:"sentiment_score"`
	LastContactedAt *time.Time      `json:"last_contacted_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
