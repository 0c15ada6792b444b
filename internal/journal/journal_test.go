package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"nifty-signals/internal/signal"
	"nifty-signals/internal/types"
)

func TestAppendAndRead(t *testing.T) {
	j := New(t.TempDir())
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, ist)
	evals := map[string]signal.Evaluation{
		"TCS.NS":  {Symbol: "TCS.NS", Signal: types.SignalSell},
		"INFY.NS": {Symbol: "INFY.NS", Signal: types.SignalHold, PredOpen: 1},
	}
	if err := j.Append(now, evals); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append(now.Add(time.Minute), evals); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := j.Read(now)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(got))
	}
	if got[0].Symbol != "INFY.NS" || got[0].Signal != types.SignalHold || got[0].PredOpen != 1 {
		t.Errorf("Unexpected first entry %+v", got[0])
	}
	if got[2].Time != "2024-03-01 10:01:00" {
		t.Errorf("Expected second batch stamp, got %s", got[2].Time)
	}

	none, err := j.Read(now.AddDate(0, 0, 1))
	if err != nil || none != nil {
		t.Errorf("Expected no entries for another day, got %v, %v", none, err)
	}
}

func TestCompressOlder(t *testing.T) {
	j := New(t.TempDir())
	old := time.Date(2024, 1, 1, 10, 0, 0, 0, ist)
	if err := j.Append(old, map[string]signal.Evaluation{"A": {Symbol: "A"}}); err != nil {
		t.Fatal(err)
	}
	fresh := time.Now()
	if err := j.Append(fresh, map[string]signal.Evaluation{"B": {Symbol: "B"}}); err != nil {
		t.Fatal(err)
	}
	oldPath := j.path(old)
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatal(err)
	}

	if err := j.CompressOlder(7); err != nil {
		t.Fatalf("CompressOlder: %v", err)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("Expected old journal to be removed")
	}
	if _, err := os.Stat(oldPath + ".gz"); err != nil {
		t.Errorf("Expected gzip archive: %v", err)
	}
	if _, err := os.Stat(j.path(fresh)); err != nil {
		t.Errorf("Expected fresh journal to be kept: %v", err)
	}
	if matches, _ := filepath.Glob(filepath.Join(j.dir, "*.gz")); len(matches) != 1 {
		t.Errorf("Expected one archive, got %v", matches)
	}
}
