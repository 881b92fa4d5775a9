package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

func openTestJournal(t *testing.T) *RunJournal {
	t.Helper()
	j, err := OpenRunJournal(filepath.Join(t.TempDir(), "journal.db"), 5)
	if err != nil {
		t.Fatalf("OpenRunJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 9, 12, 0, 0, 0, time.UTC)
	records := []RunRecord{
		{ID: "a", Program: 3, Actor: 1, Trigger: 3, Kind: "OK", Steps: 10, Started: base},
		{ID: "b", Program: 3, Actor: 2, Trigger: 3, Kind: "DIVISION_BY_ZERO", Reason: "/: division by zero",
			Line: 1, Column: 12, Word: "main", Started: base.Add(time.Second), Duration: 1500 * time.Microsecond},
		{ID: "c", Program: 4, Actor: 1, Trigger: 4, Kind: "OK", Started: base.Add(2 * time.Second)},
		{ID: "d", Program: 3, Actor: 1, Trigger: 3, Kind: "OK", Command: "look", Started: base.Add(3 * time.Second)},
	}
	for _, rec := range records {
		if err := j.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s): %v", rec.ID, err)
		}
	}

	got, err := j.Recent(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "d" || got[1].ID != "b" {
		t.Fatalf("Recent(#3, 2) = %+v", got)
	}
	b := got[1]
	if b.Actor != 2 || b.Line != 1 || b.Column != 12 || b.Word != "main" || b.Duration != 1500*time.Microsecond {
		t.Errorf("record b = %+v", b)
	}
	if !b.Started.Equal(base.Add(time.Second)) {
		t.Errorf("started = %v", b.Started)
	}
	if got[0].Command != "look" {
		t.Errorf("command = %q", got[0].Command)
	}

	fails, err := j.Failures(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(fails) != 1 || fails[0].ID != "b" {
		t.Errorf("Failures = %+v", fails)
	}

	if err := j.Record(ctx, records[0]); err == nil {
		t.Error("duplicate run ID should be rejected")
	}
}

func TestJournalClosed(t *testing.T) {
	j := openTestJournal(t)
	j.Close()
	if err := j.Record(context.Background(), RunRecord{ID: "x"}); err == nil {
		t.Error("Record after Close should fail")
	}
	if _, err := j.Recent(1, 1); err == nil {
		t.Error("Recent after Close should fail")
	}
	if err := j.Checkpoint(); err == nil {
		t.Error("Checkpoint after Close should fail")
	}
}

func TestGameJournalsRuns(t *testing.T) {
	g := newTestGame(t, nil)
	g.Journal = openTestJournal(t)
	ctx := context.Background()

	g.RunProgram(ctx, wizard, greet, greet, "")
	g.RunProgram(ctx, bob, divzero, divzero, "now")
	g.RunProgram(ctx, wizard, broken, broken, "")

	recs, err := g.Journal.Recent(divzero, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("journaled %d divzero runs", len(recs))
	}
	rec := recs[0]
	if rec.Kind != "DIVISION_BY_ZERO" || rec.Actor != bob || rec.Command != "now" || rec.Line == 0 || rec.Word != "main" {
		t.Errorf("record = %+v", rec)
	}
	if rec.ID == "" {
		t.Error("run has no ID")
	}

	// a compile failure never gets a run handle but is still journaled
	recs, _ = g.Journal.Recent(broken, 5)
	if len(recs) != 1 || recs[0].Kind != "SYNTAX_ERROR" || recs[0].ID == "" {
		t.Errorf("compile failure records = %+v", recs)
	}

	fails, _ := g.Journal.Failures(10)
	if len(fails) != 2 {
		t.Errorf("failures = %d, want 2", len(fails))
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenRunJournal(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(context.Background(), RunRecord{ID: "keep", Program: gamedb.DBRef(7), Kind: "OK", Started: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := j.Checkpoint(); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = OpenRunJournal(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	recs, err := j.Recent(7, 1)
	if err != nil || len(recs) != 1 || recs[0].ID != "keep" {
		t.Errorf("after reopen: %+v, %v", recs, err)
	}
}
