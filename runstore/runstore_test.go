package runstore_test

import (
	"path/filepath"
	"testing"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/logging"
	"github.com/Arturo1s/benor/runstore"
)

func openStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.Open(filepath.Join(t.TempDir(), "runs"), logging.New("test"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func snapshot(belief benor.Value, decided bool, round benor.Round) benor.StateSnapshot {
	return benor.StateSnapshot{Belief: &belief, Decided: &decided, Round: &round}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openStore(t)

	want := snapshot(benor.One, true, 1)
	if err := store.Put("20260829T120000Z", 2, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec, err := store.Get("20260829T120000Z", 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Run != "20260829T120000Z" || rec.ID != 2 {
		t.Errorf("got record %s/%d, want 20260829T120000Z/2", rec.Run, rec.ID)
	}
	if rec.State.Belief == nil || *rec.State.Belief != benor.One {
		t.Errorf("got belief %v, want 1", rec.State.Belief)
	}
	if rec.State.Decided == nil || !*rec.State.Decided {
		t.Errorf("got decided %v, want true", rec.State.Decided)
	}
}

func TestNullStateSurvivesRoundTrip(t *testing.T) {
	store := openStore(t)

	if err := store.Put("run", 0, benor.StateSnapshot{Killed: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec, err := store.Get("run", 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.State.Killed {
		t.Error("expected killed=true")
	}
	if rec.State.Belief != nil || rec.State.Decided != nil || rec.State.Round != nil {
		t.Errorf("got non-null state: %s", rec.State)
	}
}

func TestListReturnsOnlyTheRunInKeyOrder(t *testing.T) {
	store := openStore(t)

	for _, id := range []benor.ID{3, 0, 2, 1} {
		if err := store.Put("run-a", id, snapshot(benor.Zero, true, 0)); err != nil {
			t.Fatalf("put run-a/%d: %v", id, err)
		}
	}
	if err := store.Put("run-b", 0, snapshot(benor.One, true, 2)); err != nil {
		t.Fatalf("put run-b/0: %v", err)
	}

	records, err := store.List("run-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	for i, rec := range records {
		if rec.Run != "run-a" {
			t.Errorf("record %d belongs to run %q", i, rec.Run)
		}
		if rec.ID != benor.ID(i) {
			t.Errorf("record %d: got id %d, want %d", i, rec.ID, i)
		}
	}
}

func TestGetMissingRecordFails(t *testing.T) {
	store := openStore(t)
	if _, err := store.Get("nope", 0); err == nil {
		t.Error("expected an error for a missing record")
	}
}
