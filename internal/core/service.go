package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clientpulse/internal/blob"
	"clientpulse/internal/infra/persistence/memory"
	"clientpulse/pkg/domain"
)

// Service exposes transactional CRUD over the portfolio ontology. After every
// successful commit it runs one full recomputation pass and persists the
// refreshed derived-value collection, so readers always observe derived state
// consistent with the latest committed entities.
type Service struct {
	store   PersistentStore
	engine  *Engine
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder

	archive       blob.Store
	archivePrefix string
}

// NewService constructs a service over the supplied persistent store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		engine: NewEngine(DefaultDerivationPolicy()),
		clock:  systemClock{},
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service backed by a fresh in-memory store with
// the given rules engine (the default validation set when nil).
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// WithReportArchive attaches a blob store used by ArchiveReport. Keys are
// written under the supplied prefix.
func WithReportArchive(store blob.Store, prefix string) Option {
	return func(s *Service) {
		s.archive = store
		s.archivePrefix = prefix
	}
}

// Store returns the underlying persistent store.
func (s *Service) Store() PersistentStore { return s.store }

// Engine returns the derivation engine.
func (s *Service) Engine() *Engine { return s.engine }

// ErrNotFound is returned when reference validation fails within transactional helpers.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// run wraps a store operation with tracing, logging, metrics, auditing, and
// the post-commit recomputation pass.
func (s *Service) run(ctx context.Context, operation string, recompute bool, fn func(ctx context.Context) (Result, error)) (Result, error) {
	started := s.clock.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}

	res, err := fn(ctx)
	if err == nil && recompute {
		err = s.recompute(ctx)
	}
	duration := s.clock.Now().Sub(started)

	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, duration)
	}
	if s.audit != nil {
		entry := AuditEntry{
			Operation:  operation,
			Status:     AuditStatusSuccess,
			Duration:   duration,
			OccurredAt: started,
			Violations: res.Violations,
		}
		if err != nil {
			entry.Status = AuditStatusFailure
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "error", err)
		return res, err
	}
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.Warn("rule warning", "operation", operation, "rule", v.Rule, "message", v.Message)
		}
	}
	s.logger.Info("operation completed", "operation", operation, "duration_ms", float64(duration)/float64(time.Millisecond))
	return res, nil
}

// recompute runs one derivation pass over current state and replaces the
// stored derived-value collection.
func (s *Service) recompute(ctx context.Context) error {
	var records []DerivedValue
	if err := s.store.View(ctx, func(view RuleView) error {
		var err error
		records, err = s.engine.Run(ctx, view, s.clock.Now())
		return err
	}); err != nil {
		return fmt.Errorf("derivation pass: %w", err)
	}
	if err := s.store.ReplaceDerived(ctx, records); err != nil {
		return fmt.Errorf("replace derived: %w", err)
	}
	return nil
}

// Recompute forces a full derivation pass outside any entity mutation.
func (s *Service) Recompute(ctx context.Context) (Result, error) {
	return s.run(ctx, "recompute", true, func(context.Context) (Result, error) {
		return Result{}, nil
	})
}

// DerivedRecords returns the stored derived-value collection in insertion order.
func (s *Service) DerivedRecords() []DerivedValue {
	return s.store.DerivedRecords()
}

// LookupDerived fetches one stored derived value by key.
func (s *Service) LookupDerived(key DerivedKey) (DerivedValue, bool) {
	return s.store.LookupDerived(key)
}

// ArchiveReport serializes the stored derived-value collection as JSON and
// writes it to the configured report archive. The generated key is returned.
func (s *Service) ArchiveReport(ctx context.Context) (string, error) {
	if s.archive == nil {
		return "", fmt.Errorf("no report archive configured")
	}
	var key string
	_, err := s.run(ctx, "archive_report", false, func(ctx context.Context) (Result, error) {
		payload, err := json.MarshalIndent(s.store.DerivedRecords(), "", "  ")
		if err != nil {
			return Result{}, fmt.Errorf("encode report: %w", err)
		}
		key = fmt.Sprintf("%sderived-%s.json", s.archivePrefix, s.clock.Now().UTC().Format("20060102T150405Z"))
		if _, err := s.archive.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/json"}); err != nil {
			return Result{}, fmt.Errorf("archive report: %w", err)
		}
		return Result{}, nil
	})
	return key, err
}

// CreateAccount persists a new client account.
func (s *Service) CreateAccount(ctx context.Context, account Account) (Account, Result, error) {
	var created Account
	res, err := s.run(ctx, "create_account", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateAccount(account)
			return err
		})
	})
	return created, res, err
}

// UpdateAccount mutates an account using the provided mutator.
func (s *Service) UpdateAccount(ctx context.Context, id string, mutator func(*Account) error) (Account, Result, error) {
	var updated Account
	res, err := s.run(ctx, "update_account", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateAccount(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteAccount removes an account record.
func (s *Service) DeleteAccount(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_account", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteAccount(id)
		})
	})
}

// CreateEngagement persists a new engagement.
func (s *Service) CreateEngagement(ctx context.Context, engagement Engagement) (Engagement, Result, error) {
	var created Engagement
	res, err := s.run(ctx, "create_engagement", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateEngagement(engagement)
			return err
		})
	})
	return created, res, err
}

// UpdateEngagement mutates an engagement.
func (s *Service) UpdateEngagement(ctx context.Context, id string, mutator func(*Engagement) error) (Engagement, Result, error) {
	var updated Engagement
	res, err := s.run(ctx, "update_engagement", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateEngagement(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteEngagement removes an engagement record.
func (s *Service) DeleteEngagement(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_engagement", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteEngagement(id)
		})
	})
}

// CreateWorkstream persists a new workstream.
func (s *Service) CreateWorkstream(ctx context.Context, workstream Workstream) (Workstream, Result, error) {
	var created Workstream
	res, err := s.run(ctx, "create_workstream", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateWorkstream(workstream)
			return err
		})
	})
	return created, res, err
}

// UpdateWorkstream mutates a workstream.
func (s *Service) UpdateWorkstream(ctx context.Context, id string, mutator func(*Workstream) error) (Workstream, Result, error) {
	var updated Workstream
	res, err := s.run(ctx, "update_workstream", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateWorkstream(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteWorkstream removes a workstream record.
func (s *Service) DeleteWorkstream(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_workstream", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteWorkstream(id)
		})
	})
}

// CreateMilestone persists a new milestone.
func (s *Service) CreateMilestone(ctx context.Context, milestone Milestone) (Milestone, Result, error) {
	var created Milestone
	res, err := s.run(ctx, "create_milestone", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateMilestone(milestone)
			return err
		})
	})
	return created, res, err
}

// UpdateMilestone mutates a milestone.
func (s *Service) UpdateMilestone(ctx context.Context, id string, mutator func(*Milestone) error) (Milestone, Result, error) {
	var updated Milestone
	res, err := s.run(ctx, "update_milestone", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateMilestone(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteMilestone removes a milestone record.
func (s *Service) DeleteMilestone(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_milestone", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteMilestone(id)
		})
	})
}

// CompleteMilestone records a completion date on a milestone.
func (s *Service) CompleteMilestone(ctx context.Context, id string, completedAt time.Time) (Milestone, Result, error) {
	return s.UpdateMilestone(ctx, id, func(m *Milestone) error {
		m.CompletionDate = &completedAt
		return nil
	})
}

// SignOffMilestone records a client sign-off date on a milestone.
func (s *Service) SignOffMilestone(ctx context.Context, id string, signedAt time.Time) (Milestone, Result, error) {
	return s.UpdateMilestone(ctx, id, func(m *Milestone) error {
		m.ClientSignoffDate = &signedAt
		return nil
	})
}

// CreateDeliverable persists a new deliverable.
func (s *Service) CreateDeliverable(ctx context.Context, deliverable Deliverable) (Deliverable, Result, error) {
	var created Deliverable
	res, err := s.run(ctx, "create_deliverable", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateDeliverable(deliverable)
			return err
		})
	})
	return created, res, err
}

// UpdateDeliverable mutates a deliverable.
func (s *Service) UpdateDeliverable(ctx context.Context, id string, mutator func(*Deliverable) error) (Deliverable, Result, error) {
	var updated Deliverable
	res, err := s.run(ctx, "update_deliverable", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateDeliverable(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteDeliverable removes a deliverable and its relation links.
func (s *Service) DeleteDeliverable(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_deliverable", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteDeliverable(id)
		})
	})
}

// CreateOutcome persists a new outcome.
func (s *Service) CreateOutcome(ctx context.Context, outcome Outcome) (Outcome, Result, error) {
	var created Outcome
	res, err := s.run(ctx, "create_outcome", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateOutcome(outcome)
			return err
		})
	})
	return created, res, err
}

// UpdateOutcome mutates an outcome.
func (s *Service) UpdateOutcome(ctx context.Context, id string, mutator func(*Outcome) error) (Outcome, Result, error) {
	var updated Outcome
	res, err := s.run(ctx, "update_outcome", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateOutcome(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteOutcome removes an outcome and its relation links.
func (s *Service) DeleteOutcome(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_outcome", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteOutcome(id)
		})
	})
}

// CreateKPIMetric persists a new metric definition.
func (s *Service) CreateKPIMetric(ctx context.Context, metric KPIMetric) (KPIMetric, Result, error) {
	var created KPIMetric
	res, err := s.run(ctx, "create_kpi_metric", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateKPIMetric(metric)
			return err
		})
	})
	return created, res, err
}

// UpdateKPIMetric mutates a metric definition.
func (s *Service) UpdateKPIMetric(ctx context.Context, id string, mutator func(*KPIMetric) error) (KPIMetric, Result, error) {
	var updated KPIMetric
	res, err := s.run(ctx, "update_kpi_metric", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateKPIMetric(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteKPIMetric removes a metric definition.
func (s *Service) DeleteKPIMetric(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_kpi_metric", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteKPIMetric(id)
		})
	})
}

// RecordKPISnapshot appends an observation for an existing metric.
func (s *Service) RecordKPISnapshot(ctx context.Context, snapshot KPISnapshot) (KPISnapshot, Result, error) {
	var created KPISnapshot
	res, err := s.run(ctx, "record_kpi_snapshot", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateKPISnapshot(snapshot)
			return err
		})
	})
	return created, res, err
}

// DeleteKPISnapshot removes an observation.
func (s *Service) DeleteKPISnapshot(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_kpi_snapshot", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteKPISnapshot(id)
		})
	})
}

// CreateRiskIssue persists a new risk or issue.
func (s *Service) CreateRiskIssue(ctx context.Context, risk RiskIssue) (RiskIssue, Result, error) {
	var created RiskIssue
	res, err := s.run(ctx, "create_risk", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateRiskIssue(risk)
			return err
		})
	})
	return created, res, err
}

// UpdateRiskIssue mutates a risk.
func (s *Service) UpdateRiskIssue(ctx context.Context, id string, mutator func(*RiskIssue) error) (RiskIssue, Result, error) {
	var updated RiskIssue
	res, err := s.run(ctx, "update_risk", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateRiskIssue(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteRiskIssue removes a risk record.
func (s *Service) DeleteRiskIssue(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_risk", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteRiskIssue(id)
		})
	})
}

// CreateInvoice persists a new invoice.
func (s *Service) CreateInvoice(ctx context.Context, invoice Invoice) (Invoice, Result, error) {
	var created Invoice
	res, err := s.run(ctx, "create_invoice", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateInvoice(invoice)
			return err
		})
	})
	return created, res, err
}

// MarkInvoicePaid records a payment date on an invoice.
func (s *Service) MarkInvoicePaid(ctx context.Context, id string, paidAt time.Time) (Invoice, Result, error) {
	var updated Invoice
	res, err := s.run(ctx, "mark_invoice_paid", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateInvoice(id, func(inv *Invoice) error {
				inv.PaidDate = &paidAt
				return nil
			})
			return err
		})
	})
	return updated, res, err
}

// DeleteInvoice removes an invoice record.
func (s *Service) DeleteInvoice(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_invoice", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteInvoice(id)
		})
	})
}

// CreateStakeholder persists a new stakeholder.
func (s *Service) CreateStakeholder(ctx context.Context, stakeholder Stakeholder) (Stakeholder, Result, error) {
	var created Stakeholder
	res, err := s.run(ctx, "create_stakeholder", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateStakeholder(stakeholder)
			return err
		})
	})
	return created, res, err
}

// UpdateStakeholder mutates a stakeholder.
func (s *Service) UpdateStakeholder(ctx context.Context, id string, mutator func(*Stakeholder) error) (Stakeholder, Result, error) {
	var updated Stakeholder
	res, err := s.run(ctx, "update_stakeholder", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateStakeholder(id, mutator)
			return err
		})
	})
	return updated, res, err
}

// DeleteStakeholder removes a stakeholder record.
func (s *Service) DeleteStakeholder(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_stakeholder", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteStakeholder(id)
		})
	})
}

// LinkDeliverableToOutcome appends a supports link between a deliverable and an outcome.
func (s *Service) LinkDeliverableToOutcome(ctx context.Context, deliverableID, outcomeID string) (RelationLink, Result, error) {
	var created RelationLink
	res, err := s.run(ctx, "link_deliverable_outcome", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateRelationLink(RelationLink{
				LinkType: domain.LinkDeliverableSupportsOutcome,
				FromID:   deliverableID,
				ToID:     outcomeID,
			})
			return err
		})
	})
	return created, res, err
}

// UnlinkRelation removes a relation link by ID.
func (s *Service) UnlinkRelation(ctx context.Context, linkID string) (Result, error) {
	return s.run(ctx, "unlink_relation", true, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteRelationLink(linkID)
		})
	})
}

// GetAccount fetches one account by ID.
func (s *Service) GetAccount(ctx context.Context, id string) (Account, error) {
	var out Account
	err := s.store.View(ctx, func(view RuleView) error {
		account, ok := view.FindAccount(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityAccount, ID: id}
		}
		out = account
		return nil
	})
	return out, err
}

// GetEngagement fetches one engagement by ID.
func (s *Service) GetEngagement(ctx context.Context, id string) (Engagement, error) {
	var out Engagement
	err := s.store.View(ctx, func(view RuleView) error {
		engagement, ok := view.FindEngagement(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityEngagement, ID: id}
		}
		out = engagement
		return nil
	})
	return out, err
}

// ListAccounts returns all accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	err := s.store.View(ctx, func(view RuleView) error {
		out = view.ListAccounts()
		return nil
	})
	return out, err
}
