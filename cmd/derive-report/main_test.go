package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"clientpulse/pkg/domain"
)

func TestRunWithMemoryStore(t *testing.T) {
	t.Setenv("CLIENTPULSE_STORAGE_DRIVER", "memory")
	var buf bytes.Buffer
	if err := run(&buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	var records []domain.DerivedValue
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("empty store should derive nothing, got %d records", len(records))
	}
}

func TestRunWithArchive(t *testing.T) {
	t.Setenv("CLIENTPULSE_STORAGE_DRIVER", "memory")
	t.Setenv("CLIENTPULSE_BLOB_DRIVER", "fs")
	t.Setenv("CLIENTPULSE_BLOB_FS_ROOT", t.TempDir())
	var buf bytes.Buffer
	if err := run(&buf, []string{"-archive", "-pretty=false"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected JSON output")
	}
}

func TestRunRejectsUnknownFlags(t *testing.T) {
	var buf bytes.Buffer
	if err := run(&buf, []string{"-bogus"}); err == nil {
		t.Fatalf("expected flag parse error")
	}
}

func TestRunUnknownDriverFails(t *testing.T) {
	t.Setenv("CLIENTPULSE_STORAGE_DRIVER", "bogus")
	var buf bytes.Buffer
	if err := run(&buf, nil); err == nil {
		t.Fatalf("expected storage driver error")
	}
}
