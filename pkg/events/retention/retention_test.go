package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"meridian-hq/feedwatch/pkg/events"
	"meridian-hq/feedwatch/pkg/events/storage"
	"meridian-hq/feedwatch/pkg/failover"
)

var now = time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

// queryOnlyStore hides DeleteOldest to exercise the cutoff fallback.
type queryOnlyStore struct {
	inner events.Store
}

func (s queryOnlyStore) Store(ctx context.Context, r *events.Record) error {
	return s.inner.Store(ctx, r)
}

func (s queryOnlyStore) Query(ctx context.Context, q *events.Query) ([]*events.Record, error) {
	return s.inner.Query(ctx, q)
}

func (s queryOnlyStore) Count(ctx context.Context, q *events.Query) (int64, error) {
	return s.inner.Count(ctx, q)
}

func (s queryOnlyStore) Delete(ctx context.Context, q *events.Query) (int64, error) {
	return s.inner.Delete(ctx, q)
}

func (s queryOnlyStore) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

func (s queryOnlyStore) Close() error { return s.inner.Close() }

func seedAges(t *testing.T, s events.Store, ages ...time.Duration) {
	t.Helper()
	for i, age := range ages {
		err := s.Store(context.Background(), &events.Record{Event: failover.Event{
			ID:        fmt.Sprintf("e%d", i),
			Type:      failover.EventFailover,
			RuleID:    "r1",
			Timestamp: now.Add(-age),
		}})
		if err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
}

func newPruner(store events.Store, cfg *Config) *Pruner {
	p := NewPruner(store, cfg)
	p.now = func() time.Time { return now }
	return p
}

func TestPruner_Prune(t *testing.T) {
	day := 24 * time.Hour
	ages := []time.Duration{40 * day, 31 * day, 10 * day, 2 * day, time.Hour}

	tests := []struct {
		name        string
		config      Config
		wrap        bool
		wantDeleted int64
		wantLeft    int64
	}{
		{name: "age only", config: Config{RetentionDays: 30}, wantDeleted: 2, wantLeft: 3},
		{name: "count only", config: Config{MaxRecords: 2}, wantDeleted: 3, wantLeft: 2},
		{name: "count fallback", config: Config{MaxRecords: 2}, wrap: true, wantDeleted: 3, wantLeft: 2},
		{name: "age then count", config: Config{RetentionDays: 30, MaxRecords: 1}, wantDeleted: 4, wantLeft: 1},
		{name: "disabled", config: Config{}, wantDeleted: 0, wantLeft: 5},
		{name: "within limits", config: Config{RetentionDays: 90, MaxRecords: 10}, wantDeleted: 0, wantLeft: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var store events.Store = storage.NewMemoryStorage(100)
			seedAges(t, store, ages...)
			if tt.wrap {
				store = queryOnlyStore{inner: store}
			}

			cfg := tt.config
			deleted, err := newPruner(store, &cfg).Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", deleted, tt.wantDeleted)
			}
			left, _ := store.Count(context.Background(), &events.Query{})
			if left != tt.wantLeft {
				t.Errorf("left = %d, want %d", left, tt.wantLeft)
			}
		})
	}
}

func TestPruner_KeepsNewest(t *testing.T) {
	store := storage.NewMemoryStorage(100)
	seedAges(t, store, 3*time.Hour, 2*time.Hour, time.Hour)

	if _, err := newPruner(store, &Config{MaxRecords: 1}).Prune(context.Background()); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	got, _ := store.Query(context.Background(), &events.Query{})
	if len(got) != 1 || got[0].ID != "e2" {
		t.Errorf("kept %v, want the newest record e2", got)
	}
}

func TestPruner_StoreError(t *testing.T) {
	store := storage.NewMemoryStorage(10)
	_ = store.Close()

	_, err := newPruner(store, &Config{RetentionDays: 1}).Prune(context.Background())
	if err == nil {
		t.Fatal("expected error from closed store")
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{name: "valid daily schedule", schedule: "0 3 * * *", wantRunning: true},
		{name: "valid hourly schedule", schedule: "0 * * * *", wantRunning: true},
		{name: "empty schedule", schedule: "", wantRunning: false},
		{name: "invalid schedule", schedule: "invalid cron", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruner := NewPruner(storage.NewMemoryStorage(10), &Config{
				PruneSchedule: tt.schedule,
				RetentionDays: 30,
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := pruner.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if pruner.scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", pruner.scheduler.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				if next := pruner.NextPruning(); next == nil || !next.After(time.Now().Add(-time.Second)) {
					t.Errorf("NextPruning() = %v, want a future time", next)
				}
			}

			pruner.Stop()
			if pruner.scheduler.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryStorage(10), &Config{PruneSchedule: "0 3 * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for pruner.scheduler.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
