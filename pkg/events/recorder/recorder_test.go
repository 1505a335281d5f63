package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"meridian-hq/feedwatch/pkg/events"
	"meridian-hq/feedwatch/pkg/events/storage"
	"meridian-hq/feedwatch/pkg/failover"
)

// blockingStore blocks every Store call until release is closed.
type blockingStore struct {
	*storage.MemoryStorage
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Store(ctx context.Context, r *events.Record) error {
	<-b.release
	return b.MemoryStorage.Store(ctx, r)
}

func (b *blockingStore) Release() { b.once.Do(func() { close(b.release) }) }

type failingStore struct {
	*storage.MemoryStorage
}

func (failingStore) Store(ctx context.Context, r *events.Record) error {
	return errors.New("disk full")
}

func TestRecorder_WritesEvents(t *testing.T) {
	store := storage.NewMemoryStorage(100)
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec := NewRecorder(store, &Config{AsyncBuffer: 10, Clock: func() time.Time { return fixed }})

	rec.HandleEvent(failover.Event{ID: "e1", Type: failover.EventFailover, RuleID: "r1"})
	rec.HandleEvent(failover.Event{Type: failover.EventRecovery, RuleID: "r1"})

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := store.Query(context.Background(), &events.Query{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("stored %d records, want 2", len(got))
	}
	for _, r := range got {
		if r.ID == "" {
			t.Error("record without ID")
		}
		if !r.RecordedAt.Equal(fixed) {
			t.Errorf("RecordedAt = %v, want %v", r.RecordedAt, fixed)
		}
	}
	if rec.Written() != 2 || rec.Dropped() != 0 {
		t.Errorf("written=%d dropped=%d", rec.Written(), rec.Dropped())
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	store := &blockingStore{MemoryStorage: storage.NewMemoryStorage(100), release: make(chan struct{})}
	rec := NewRecorder(store, &Config{AsyncBuffer: 1})

	// The worker takes the first event and blocks on it; the second fills the
	// buffer; everything after that must be dropped without blocking.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			rec.HandleEvent(failover.Event{Type: failover.EventFailover, RuleID: "r1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleEvent blocked on a full buffer")
	}

	store.Release()
	_ = rec.Close()

	if rec.Dropped() < 8 {
		t.Errorf("Dropped() = %d, want at least 8", rec.Dropped())
	}
	if rec.Written()+rec.Dropped() != 10 {
		t.Errorf("written %d + dropped %d != 10", rec.Written(), rec.Dropped())
	}
}

func TestRecorder_AfterClose(t *testing.T) {
	rec := NewRecorder(storage.NewMemoryStorage(10), nil)
	_ = rec.Close()
	_ = rec.Close()

	rec.HandleEvent(failover.Event{Type: failover.EventFailover})
	if rec.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", rec.Dropped())
	}
}

func TestRecorder_StoreError(t *testing.T) {
	rec := NewRecorder(failingStore{storage.NewMemoryStorage(10)}, nil)
	rec.HandleEvent(failover.Event{Type: failover.EventFailover})
	_ = rec.Close()

	if rec.Written() != 0 {
		t.Errorf("Written() = %d, want 0", rec.Written())
	}
}

func TestRecorder_AsServiceSink(t *testing.T) {
	store := storage.NewMemoryStorage(100)
	rec := NewRecorder(store, nil)

	svc, err := failover.NewService(failover.Config{}, []failover.Rule{{
		ID:                "r1",
		PrimaryProviderID: "ib",
		BackupProviderIDs: []failover.ProviderID{"alpaca"},
		FailoverThreshold: 2,
		RecoveryThreshold: 1,
	}})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	svc.AddEventSink(rec)

	svc.ReportFailure("ib", "timeout")
	svc.ReportFailure("ib", "timeout")
	svc.ReportSuccess("ib", 10)
	_ = rec.Close()

	got, _ := store.Query(context.Background(), &events.Query{RuleID: "r1", SortOrder: events.SortAsc})
	if len(got) != 2 || got[0].Type != failover.EventFailover || got[1].Type != failover.EventRecovery {
		types := make([]failover.EventType, len(got))
		for i, r := range got {
			types[i] = r.Type
		}
		t.Errorf("recorded types = %v, want [failover recovery]", types)
	}
}
