package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gplanner/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", "  NONE  "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) should return a nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreAppendsRunsAndArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "audit.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	runs := []RunRecord{
		{RunID: "r1", JobID: "daily_plan", Outcome: "completed", Started: time.Now(), TookMS: 120},
		{RunID: "r2", JobID: "daily_plan", Outcome: "failed", Error: "credential unavailable"},
	}
	for _, r := range runs {
		if err := st.AppendRun(ctx, r); err != nil {
			t.Fatalf("AppendRun: %v", err)
		}
	}
	if err := st.AppendArtifact(ctx, ArtifactRecord{
		Date: "2024-06-01", ListID: "l1", Title: "Daily Plan - 2024-06-01", Entries: 5,
	}); err != nil {
		t.Fatalf("AppendArtifact: %v", err)
	}

	gotRuns := readJSONL[RunRecord](t, filepath.Join(dir, "audit.runs.jsonl"))
	if len(gotRuns) != 2 {
		t.Fatalf("runs = %d, want 2", len(gotRuns))
	}
	if gotRuns[0].RunID != "r1" || gotRuns[1].Error != "credential unavailable" {
		t.Fatalf("unexpected runs %+v", gotRuns)
	}
	if gotRuns[1].Started.IsZero() {
		t.Fatal("zero start time should be filled in")
	}

	gotArts := readJSONL[ArtifactRecord](t, filepath.Join(dir, "audit.artifacts.jsonl"))
	if len(gotArts) != 1 || gotArts[0].Title != "Daily Plan - 2024-06-01" {
		t.Fatalf("unexpected artifacts %+v", gotArts)
	}
	if gotArts[0].CreatedAt.IsZero() {
		t.Fatal("zero created_at should be filled in")
	}
}

func TestFileStoreAppendAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := Config{Driver: "file", Path: filepath.Join(dir, "audit")}

	for i := 0; i < 2; i++ {
		st, err := Open(cfg, logx.Nop())
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		if err := st.AppendRun(context.Background(), RunRecord{RunID: "r", JobID: "j", Outcome: "completed"}); err != nil {
			t.Fatalf("AppendRun #%d: %v", i, err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}

	got := readJSONL[RunRecord](t, filepath.Join(dir, "audit.runs.jsonl"))
	if len(got) != 2 {
		t.Fatalf("runs after reopen = %d, want 2", len(got))
	}
}

func TestFileStoreAppendAfterClose(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "audit")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.AppendRun(context.Background(), RunRecord{RunID: "r"}); err == nil {
		t.Fatal("append after close must fail")
	}
}

func readJSONL[T any](t *testing.T, path string) []T {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var out []T
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Fatalf("bad line in %s: %v", path, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return out
}
