// Package sqlite persists the in-memory store state to a single SQLite
// table as JSON blobs, one bucket per entity collection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"clientpulse/internal/infra/persistence/memory"
	"clientpulse/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

// Store snapshots the full application state after every successful
// transaction and after each derived-value replacement.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "clientpulse.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{
	"accounts", "engagements", "workstreams", "milestones", "deliverables",
	"outcomes", "kpi_metrics", "kpi_snapshots", "risk_issues", "invoices",
	"stakeholders", "relation_links", "derived_values",
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	type raw struct {
		bucket  string
		payload []byte
	}
	var raws []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.bucket, &r.payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(raws) == 0 {
		return nil
	}
	snapshot := memory.Snapshot{}
	for _, r := range raws {
		target, ok := bucketTarget(&snapshot, r.bucket)
		if !ok {
			continue
		}
		if err := json.Unmarshal(r.payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", r.bucket, err)
		}
	}
	s.ImportState(snapshot)
	return nil
}

// bucketTarget maps a bucket name to the snapshot field it decodes into.
func bucketTarget(snapshot *memory.Snapshot, bucket string) (any, bool) {
	switch bucket {
	case "accounts":
		return &snapshot.Accounts, true
	case "engagements":
		return &snapshot.Engagements, true
	case "workstreams":
		return &snapshot.Workstreams, true
	case "milestones":
		return &snapshot.Milestones, true
	case "deliverables":
		return &snapshot.Deliverables, true
	case "outcomes":
		return &snapshot.Outcomes, true
	case "kpi_metrics":
		return &snapshot.Metrics, true
	case "kpi_snapshots":
		return &snapshot.Snapshots, true
	case "risk_issues":
		return &snapshot.Risks, true
	case "invoices":
		return &snapshot.Invoices, true
	case "stakeholders":
		return &snapshot.Stakeholders, true
	case "relation_links":
		return &snapshot.Links, true
	case "derived_values":
		if snapshot.Derived == nil {
			snapshot.Derived = domain.NewDerivedStore()
		}
		return snapshot.Derived, true
	}
	return nil, false
}

func bucketPayload(snapshot memory.Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case "accounts":
		return json.Marshal(snapshot.Accounts)
	case "engagements":
		return json.Marshal(snapshot.Engagements)
	case "workstreams":
		return json.Marshal(snapshot.Workstreams)
	case "milestones":
		return json.Marshal(snapshot.Milestones)
	case "deliverables":
		return json.Marshal(snapshot.Deliverables)
	case "outcomes":
		return json.Marshal(snapshot.Outcomes)
	case "kpi_metrics":
		return json.Marshal(snapshot.Metrics)
	case "kpi_snapshots":
		return json.Marshal(snapshot.Snapshots)
	case "risk_issues":
		return json.Marshal(snapshot.Risks)
	case "invoices":
		return json.Marshal(snapshot.Invoices)
	case "stakeholders":
		return json.Marshal(snapshot.Stakeholders)
	case "relation_links":
		return json.Marshal(snapshot.Links)
	case "derived_values":
		return json.Marshal(snapshot.Derived)
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		data, err := bucketPayload(snapshot, bucket)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// ReplaceDerived swaps the derived-value set and snapshots state to SQLite.
func (s *Store) ReplaceDerived(ctx context.Context, records []domain.DerivedValue) error {
	if err := s.Store.ReplaceDerived(ctx, records); err != nil {
		return err
	}
	return s.persist()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
