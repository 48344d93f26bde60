package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/godreamer/dreamer"
)

// stores returns an initialized store of each backend
func stores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqlite := NewSQLiteStore(filepath.Join(t.TempDir(), "godreamer.db"))
	t.Cleanup(func() {
		_ = sqlite.Close()
	})

	out := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
	for name, store := range out {
		if err := store.Init(ctx); err != nil {
			t.Fatalf("%s: init: %v", name, err)
		}
	}
	return out
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			config := []byte(`{"BatchSize":16}`)
			run, err := store.CreateRun(ctx, "run_0", 1<<63+5, config)
			if err != nil {
				t.Fatalf("create run: %v", err)
			}
			if run.ID == "" {
				t.Fatalf("create run: empty run id")
			}

			loaded, ok, err := store.GetRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("get run: %v", err)
			}
			if !ok {
				t.Fatalf("expected run %s", run.ID)
			}
			if loaded.Name != run.Name || loaded.Seed != run.Seed ||
				!bytes.Equal(loaded.Config, config) ||
				!loaded.Created.Equal(run.Created) {
				t.Errorf("unexpected run loaded: %+v, want %+v", loaded, run)
			}

			if _, ok, err := store.GetRun(ctx, "missing"); ok || err != nil {
				t.Errorf("get missing run: ok(%v) err(%v)", ok, err)
			}
		})
	}
}

func TestDiagnosticsAndReturns(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			run, err := store.CreateRun(ctx, "run", 0, nil)
			if err != nil {
				t.Fatal(err)
			}

			records := []DiagnosticsRecord{
				{Step: 100, Index: 0, Diagnostics: dreamer.Diagnostics{
					Loss: 3, ModelLoss: 1, ActorLoss: 1, ValueLoss: 1}},
				{Step: 100, Index: 1, Diagnostics: dreamer.Diagnostics{
					Loss: 2, Divergence: 0.5, ImageLoss: 7}},
			}
			if err := store.AppendDiagnostics(ctx, run.ID, records[:1]); err != nil {
				t.Fatalf("append diagnostics: %v", err)
			}
			if err := store.AppendDiagnostics(ctx, run.ID, records[1:]); err != nil {
				t.Fatalf("append diagnostics: %v", err)
			}

			loaded, err := store.GetDiagnostics(ctx, run.ID)
			if err != nil {
				t.Fatalf("get diagnostics: %v", err)
			}
			if len(loaded) != len(records) {
				t.Fatalf("get diagnostics: want(%d) records, have(%d)",
					len(records), len(loaded))
			}
			for i := range records {
				if loaded[i] != records[i] {
					t.Errorf("record %d: want(%+v), have(%+v)", i, records[i],
						loaded[i])
				}
			}

			// Returns are ordered by episode, and a repeated episode
			// replaces the earlier return
			for _, r := range []struct {
				episode int
				ret     float64
			}{{1, -2}, {0, -5}, {1, -1}} {
				if err := store.AppendReturn(ctx, run.ID, r.episode, r.ret); err != nil {
					t.Fatalf("append return: %v", err)
				}
			}
			returns, err := store.GetReturns(ctx, run.ID)
			if err != nil {
				t.Fatalf("get returns: %v", err)
			}
			if len(returns) != 2 || returns[0] != -5 || returns[1] != -1 {
				t.Errorf("get returns: want([-5 -1]), have(%v)", returns)
			}
		})
	}
}

func TestOptimState(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			run, err := store.CreateRun(ctx, "run", 0, nil)
			if err != nil {
				t.Fatal(err)
			}

			if _, _, ok, err := store.LatestOptimState(ctx, run.ID); ok || err != nil {
				t.Fatalf("latest optim state: expected none, ok(%v) err(%v)",
					ok, err)
			}

			first := dreamer.OptimState{Model: []byte{1}, Actor: []byte{2},
				Value: []byte{3}}
			second := dreamer.OptimState{Model: []byte{4, 5}, Actor: []byte{6},
				Value: []byte{7}}
			if err := store.SaveOptimState(ctx, run.ID, 10, first); err != nil {
				t.Fatal(err)
			}
			if err := store.SaveOptimState(ctx, run.ID, 20, second); err != nil {
				t.Fatal(err)
			}

			step, state, ok, err := store.LatestOptimState(ctx, run.ID)
			if err != nil || !ok {
				t.Fatalf("latest optim state: ok(%v) err(%v)", ok, err)
			}
			if step != 20 || !bytes.Equal(state.Model, second.Model) ||
				!bytes.Equal(state.Actor, second.Actor) ||
				!bytes.Equal(state.Value, second.Value) {
				t.Errorf("latest optim state: want step 20 %+v, have step %d %+v",
					second, step, state)
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("newStore: default store should be a memory store")
	}
	if err := CloseIfSupported(store); err != nil {
		t.Errorf("closeIfSupported: %v", err)
	}

	if _, err := NewStore("sqlite", ""); err == nil {
		t.Errorf("newStore: expected error without sqlite path")
	}
	if _, err := NewStore("postgres", ""); err == nil {
		t.Errorf("newStore: expected error for unsupported backend")
	}

	store, err = NewStore("sqlite", filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("newStore: expected sqlite store")
	}
}

func TestUninitialized(t *testing.T) {
	ctx := context.Background()
	for name, store := range map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "db")),
	} {
		if _, err := store.CreateRun(ctx, "run", 0, nil); err == nil {
			t.Errorf("%s: expected error from uninitialized store", name)
		}
	}
}
