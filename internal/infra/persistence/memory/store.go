// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"clientpulse/pkg/domain"
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Account aliases domain.ClientAccount for in-memory persistence operations.
	Account = domain.ClientAccount
	// Engagement aliases domain.Engagement.
	Engagement = domain.Engagement
	// Workstream aliases domain.Workstream.
	Workstream = domain.Workstream
	// Milestone aliases domain.Milestone.
	Milestone = domain.Milestone
	// Deliverable aliases domain.Deliverable.
	Deliverable = domain.Deliverable
	// Outcome aliases domain.Outcome.
	Outcome = domain.Outcome
	// KPIMetric aliases domain.KPIMetric.
	KPIMetric = domain.KPIMetric
	// KPISnapshot aliases domain.KPISnapshot.
	KPISnapshot = domain.KPISnapshot
	// RiskIssue aliases domain.RiskIssue.
	RiskIssue = domain.RiskIssue
	// Invoice aliases domain.Invoice.
	Invoice = domain.Invoice
	// Stakeholder aliases domain.Stakeholder.
	Stakeholder = domain.Stakeholder
	// RelationLink aliases domain.RelationLink.
	RelationLink = domain.RelationLink
	// DerivedStore aliases domain.DerivedStore.
	DerivedStore = domain.DerivedStore
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// RuleView aliases domain.RuleView providing read-only state.
	RuleView = domain.RuleView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
	// EntityType aliases domain.EntityType.
	EntityType = domain.EntityType
)

// Entity type aliases used by the snapshot migrate pass.
const (
	EntityDeliverable = domain.EntityDeliverable
	EntityOutcome     = domain.EntityOutcome
)

func domainNewDerivedStore() *DerivedStore { return domain.NewDerivedStore() }

// Store is a mutex-guarded in-memory persistent store. Transactions run
// against a cloned state and commit only after rule evaluation passes.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider; tests use it to pin "now".
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(RuleView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// ReplaceDerived swaps the derived-value collection with the provided records.
// The engine calls this once after each recomputation pass.
func (s *Store) ReplaceDerived(_ context.Context, records []domain.DerivedValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := domain.NewDerivedStore()
	for _, rec := range records {
		fresh.Upsert(rec)
	}
	s.state.derived = fresh
	return nil
}

// LookupDerived returns the derived record for a key, if present.
func (s *Store) LookupDerived(key domain.DerivedKey) (domain.DerivedValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.derived.Lookup(key)
}

// DerivedRecords returns the derived-value collection in stable order.
func (s *Store) DerivedRecords() []domain.DerivedValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.derived.Clone().Records()
}
