package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	info, err := store.Put(ctx, "snap.json", bytes.NewReader([]byte("payload")), PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "snap.json", bytes.NewReader([]byte("other")), PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put to fail")
	}
	got, rc, err := store.Get(ctx, "snap.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(body) != "payload" || got.ContentType != "application/json" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
	if _, err := store.Head(ctx, "missing.json"); err == nil {
		t.Fatalf("expected head of missing key to fail")
	}
	ok, err := store.Delete(ctx, "snap.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "snap.json"); err == nil {
		t.Fatalf("expected get after delete to fail")
	}
}

func TestMemoryListSortedByKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	for _, key := range []string{"c.json", "a.json", "b.json"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "a.json" || list[1].Key != "b.json" || list[2].Key != "c.json" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestMemoryPresignUnsupported(t *testing.T) {
	store := NewMemory()
	if _, err := store.PresignURL(context.Background(), "any", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()
	t.Setenv("CLIENTPULSE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	t.Setenv("CLIENTPULSE_BLOB_DRIVER", "fs")
	t.Setenv("CLIENTPULSE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	t.Setenv("CLIENTPULSE_BLOB_DRIVER", "bogus")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
