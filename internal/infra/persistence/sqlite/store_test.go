package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clientpulse/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	var accountID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		account, e := tx.CreateAccount(domain.ClientAccount{Name: "Persist Co", EstimatedLifetimeValue: 900_000})
		if e != nil {
			return e
		}
		accountID = account.ID
		_, e = tx.CreateEngagement(domain.Engagement{AccountID: account.ID, Name: "Phase 1", Status: "active", StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if err := reloaded.View(context.Background(), func(view domain.RuleView) error {
		if _, ok := view.FindAccount(accountID); !ok {
			t.Fatalf("expected account %q after reload", accountID)
		}
		if got := len(view.ListEngagements()); got != 1 {
			t.Fatalf("expected 1 engagement, got %d", got)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSQLiteStorePersistsDerivedValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	var accountID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		account, e := tx.CreateAccount(domain.ClientAccount{Name: "Derived Co"})
		accountID = account.ID
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	key := domain.DerivedKey{ObjectType: domain.EntityAccount, ObjectID: accountID, Field: domain.FieldAccountHealth}
	if err := store.ReplaceDerived(context.Background(), []domain.DerivedValue{{
		ObjectType: key.ObjectType,
		ObjectID:   key.ObjectID,
		Field:      key.Field,
		Value:      float64(77),
	}}); err != nil {
		t.Fatalf("replace derived: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	value, ok := reloaded.LookupDerived(key)
	if !ok {
		t.Fatalf("expected derived value after reload")
	}
	if value.Value != float64(77) {
		t.Fatalf("expected 77, got %v", value.Value)
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='state'").Scan(&tableName); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if tableName != "state" {
		t.Fatalf("expected state table, got %s", tableName)
	}
}
