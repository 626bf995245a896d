package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMemStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	defer store.Close()

	if err := store.WriteAll(ctx, "group/.zattrs", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("couldn't write key: %v", err)
	}
	if err := store.WriteAll(ctx, "group/s0/0.0", []byte{1, 2, 3}); err != nil {
		t.Fatalf("couldn't write key: %v", err)
	}

	data, err := store.ReadAll(ctx, "group/.zattrs")
	if err != nil {
		t.Fatalf("couldn't read key back: %v", err)
	}
	if !bytes.Equal(data, []byte(`{"a":1}`)) {
		t.Errorf("bad value read back: %s", data)
	}

	exists, err := store.Exists(ctx, "group/s0/0.0")
	if err != nil || !exists {
		t.Errorf("expected key to exist, got %v, %v", exists, err)
	}
	exists, err = store.Exists(ctx, "group/s1/0.0")
	if err != nil || exists {
		t.Errorf("expected key to be absent, got %v, %v", exists, err)
	}

	keys, err := store.List(ctx, "group/s0/")
	if err != nil {
		t.Fatalf("couldn't list keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "group/s0/0.0" {
		t.Errorf("bad listing: %v", keys)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	defer store.Close()

	_, err := store.ReadAll(ctx, "no/such/key")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestCachedStoreReplaysIdenticalBytes(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	if err := mem.WriteAll(ctx, "k", []byte("value bytes")); err != nil {
		t.Fatalf("couldn't write key: %v", err)
	}
	store := Cached(mem, 1<<20)
	defer store.Close()

	first, err := store.ReadAll(ctx, "k")
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	second, err := store.ReadAll(ctx, "k")
	if err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("cache diverged: %q vs %q", first, second)
	}

	if _, err := store.ReadAll(ctx, "absent"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound through cache, got %v", err)
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), "bogus://somewhere"); err == nil {
		t.Error("expected error for unregistered scheme")
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		elems []string
		want  string
	}{
		{[]string{"group", "s0"}, "group/s0"},
		{[]string{"", "s0"}, "s0"},
		{[]string{"group/", "/s0/", ".zarray"}, "group/s0/.zarray"},
		{[]string{"", ""}, ""},
	}
	for _, test := range tests {
		if got := Join(test.elems...); got != test.want {
			t.Errorf("Join(%v) = %q, want %q", test.elems, got, test.want)
		}
	}
}
