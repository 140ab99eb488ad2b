package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	// Test Put
	if err := s.Put(ctx, "employee:1", []byte(`{"name":"Ada"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Test Get
	got, err := s.Get(ctx, "employee:1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"name":"Ada"}` {
		t.Errorf("Expected stored value, got %q", got)
	}

	// Test overwrite
	if err := s.Put(ctx, "employee:1", []byte(`{"name":"Grace"}`)); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}
	got, _ = s.Get(ctx, "employee:1")
	if string(got) != `{"name":"Grace"}` {
		t.Errorf("Expected overwritten value, got %q", got)
	}

	// Test Get non-existent
	if _, err := s.Get(ctx, "employee:missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	// Test List ordering, prefix and limit
	for _, k := range []string{"employee:3", "employee:2", "employees", "attendance:1"} {
		if err := s.Put(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Put %s failed: %v", k, err)
		}
	}
	keys, err := s.List(ctx, "employee:", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"employee:1", "employee:2", "employee:3"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, keys)
	}

	keys, _ = s.List(ctx, "employee:", 2)
	if len(keys) != 2 || keys[0] != "employee:1" || keys[1] != "employee:2" {
		t.Errorf("Expected first two keys, got %v", keys)
	}

	all, _ := s.List(ctx, "", 0)
	if len(all) != 5 {
		t.Errorf("Expected 5 keys in total, got %v", all)
	}

	// Test Delete, twice
	if err := s.Delete(ctx, "employee:1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "employee:1"); err != nil {
		t.Fatalf("Delete of a missing key should succeed, got %v", err)
	}
	if _, err := s.Get(ctx, "employee:1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestMemStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemStore(nil, nil))
}

func TestMemStore_ValuesAreCopied(t *testing.T) {
	ms := NewMemStore(nil, nil)
	ctx := context.Background()

	val := []byte("abc")
	ms.Put(ctx, "k", val)
	val[0] = 'z'

	got, _ := ms.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Store kept a reference to the caller's slice: %q", got)
	}

	got[1] = 'z'
	again, _ := ms.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("Store handed out its internal slice: %q", again)
	}
}

func TestMemStore_CanceledContext(t *testing.T) {
	ms := NewMemStore(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ms.Put(ctx, "k", []byte("v")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if _, err := ms.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.Canceled) {
		t.Errorf("Expected ErrUnavailable wrapping context.Canceled, got %v", err)
	}
}

func TestPersistence(t *testing.T) {
	tmpDir := t.TempDir()

	p, err := NewPersistence(tmpDir)
	if err != nil {
		t.Fatalf("NewPersistence failed: %v", err)
	}

	data := map[string][]byte{"user:1": []byte(`{"email":"a@x.com"}`)}
	if err := p.Save(data); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, SnapshotFile)); os.IsNotExist(err) {
		t.Fatal("Snapshot file was not created")
	}

	allData, err := p.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if string(allData["user:1"]) != `{"email":"a@x.com"}` {
		t.Errorf("Loaded data mismatch: %v", allData)
	}
}

func TestPersistence_EmptyAndCorrupt(t *testing.T) {
	tmpDir := t.TempDir()
	var warnings []string
	p, _ := NewPersistence(tmpDir)
	p.Logf = func(format string, args ...any) { warnings = append(warnings, fmt.Sprintf(format, args...)) }

	data, err := p.LoadAll()
	if err != nil || len(data) != 0 {
		t.Fatalf("Expected empty data for a fresh dir, got %v, %v", data, err)
	}

	os.WriteFile(filepath.Join(tmpDir, SnapshotFile), []byte("{broken"), 0644)
	data, err = p.LoadAll()
	if err != nil || len(data) != 0 {
		t.Fatalf("Expected corrupt snapshot to load as empty, got %v, %v", data, err)
	}
	if len(warnings) != 1 {
		t.Errorf("Expected one warning, got %v", warnings)
	}
}

func TestMemStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	ms, err := OpenMemStore(tmpDir)
	if err != nil {
		t.Fatalf("OpenMemStore failed: %v", err)
	}
	ms.Put(ctx, "k1", []byte("v1"))
	ms.Put(ctx, "k2", []byte("v2"))
	ms.Delete(ctx, "k2")

	ms.Wait() // Wait for background persistence

	ms2, err := OpenMemStore(tmpDir)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	val, err := ms2.Get(ctx, "k1")
	if err != nil || string(val) != "v1" {
		t.Errorf("Expected v1, got %q, %v", val, err)
	}
	if _, err := ms2.Get(ctx, "k2"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Deleted key survived the snapshot: %v", err)
	}
}

func TestMemStore_Concurrent(t *testing.T) {
	ms := NewMemStore(nil, nil)
	ctx := context.Background()
	const (
		numGoroutines = 10
		numOps        = 100
	)
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*numOps)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				ms.Put(ctx, key, []byte(key))
				val, err := ms.Get(ctx, key)
				if err != nil || string(val) != key {
					errs <- fmt.Errorf("expected %s, got %q, err %v", key, val, err)
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if ms.Len() != numGoroutines*numOps {
		t.Errorf("Expected %d keys, got %d", numGoroutines*numOps, ms.Len())
	}
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	src := NewMemStore(nil, nil)
	src.Put(ctx, "user:1", []byte("a"))
	src.Put(ctx, "user:email:a@x.com", []byte(`"1"`))
	dst := NewMemStore(nil, nil)

	n, err := Migrate(ctx, src, dst)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 keys copied, got %d", n)
	}
	val, err := dst.Get(ctx, "user:email:a@x.com")
	if err != nil || string(val) != `"1"` {
		t.Errorf("Migrated value mismatch: %q, %v", val, err)
	}
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		prefix  string
		want    string
		bounded bool
	}{
		{"user:", "user;", true},
		{"", "", false},
		{"a\xff", "b", true},
		{"\xff\xff", "", false},
		{"¿", "", false},
	}
	for _, tt := range tests {
		got, ok := prefixEnd(tt.prefix)
		if got != tt.want || ok != tt.bounded {
			t.Errorf("prefixEnd(%q) = %q, %v; want %q, %v", tt.prefix, got, ok, tt.want, tt.bounded)
		}
	}
}
