package ticket

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreCompareAndSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := Record{State: StatePending, CreatedAt: time.Now()}
	if err := store.Put(ctx, "t1", rec, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	confirmed := Record{State: StateConfirmed, Principal: "u1", Redirect: "/dashboard", CreatedAt: rec.CreatedAt}

	won, err := store.CompareAndSet(ctx, "t1", StateConfirmed, confirmed, time.Minute)
	if err != nil {
		t.Fatalf("CAS: %v", err)
	}
	if won {
		t.Error("CAS with wrong expected state must fail")
	}

	won, err = store.CompareAndSet(ctx, "t1", StatePending, confirmed, time.Minute)
	if err != nil {
		t.Fatalf("CAS: %v", err)
	}
	if !won {
		t.Error("CAS with matching state must succeed")
	}

	got, _ := store.Get(ctx, "t1")
	if got == nil || got.State != StateConfirmed || got.Principal != "u1" {
		t.Errorf("unexpected record after CAS: %+v", got)
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if rec, err := store.Get(ctx, "nope"); err != nil || rec != nil {
		t.Errorf("expected (nil, nil) for missing key, got (%v, %v)", rec, err)
	}

	won, err := store.CompareAndSet(ctx, "nope", StatePending, Record{State: StateConfirmed}, time.Minute)
	if err != nil {
		t.Fatalf("CAS: %v", err)
	}
	if won {
		t.Error("CAS on a missing key must fail")
	}
}

func TestMemoryStoreTTLEviction(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	now := base
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Put(ctx, "t1", Record{State: StatePending, CreatedAt: base}, 5*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	now = base.Add(5*time.Minute + time.Second)

	if rec, _ := store.Get(ctx, "t1"); rec != nil {
		t.Errorf("expected eviction after TTL, got %+v", rec)
	}

	won, _ := store.CompareAndSet(ctx, "t1", StatePending, Record{State: StateConfirmed}, time.Minute)
	if won {
		t.Error("CAS must fail once the entry expired")
	}
}
