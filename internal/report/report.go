package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/signal"
	"nifty-signals/internal/types"
)

var ist = time.FixedZone("IST", 19800)

// Reports are written once the cash session has closed.
const cutoffHour, cutoffMinute = 15, 40

type writer struct {
	dir string
	now func() time.Time
}

var _ interfaces.ReportWriter = (*writer)(nil)

func New(dir string) interfaces.ReportWriter {
	return newWriter(dir, func() time.Time { return time.Now().In(ist) })
}

func newWriter(dir string, now func() time.Time) *writer {
	if dir == "" {
		dir = "logs"
	}
	return &writer{dir: dir, now: now}
}

func (w *writer) csvPath(t time.Time) string {
	return filepath.Join(w.dir, "signals", t.In(ist).Format("2006-01-02")+".csv")
}

// WriteDay writes one row per instrument, sorted by symbol, followed by a
// per-signal count row. No file is written for an empty set.
func (w *writer) WriteDay(t time.Time, evals map[string]signal.Evaluation) (string, error) {
	if len(evals) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(evals))
	for k := range evals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := w.csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	cw := csv.NewWriter(out)
	headers := []string{"symbol", "as_of", "close", "pred_open", "pred_close", "signal"}
	if err := cw.Write(headers); err != nil {
		return "", err
	}
	counts := map[types.Signal]int{}
	for _, k := range keys {
		e := evals[k]
		counts[e.Signal]++
		rec := []string{
			k,
			e.AsOf.Format("2006-01-02"),
			fmt.Sprintf("%.2f", e.Close),
			strconv.Itoa(e.PredOpen),
			strconv.Itoa(e.PredClose),
			string(e.Signal),
		}
		if err := cw.Write(rec); err != nil {
			return "", err
		}
	}
	total := fmt.Sprintf("BUY=%d SELL=%d HOLD=%d NO_MODEL=%d",
		counts[types.SignalBuy], counts[types.SignalSell], counts[types.SignalHold], counts[types.SignalNoModel])
	_ = cw.Write([]string{"TOTAL", "", "", "", "", total})
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

// ShouldRunNow reports whether the session has closed and today's report is
// still missing.
func (w *writer) ShouldRunNow() (bool, string) {
	now := w.now().In(ist)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), cutoffHour, cutoffMinute, 0, 0, ist)
	outPath := w.csvPath(now)
	if now.After(cutoff) {
		if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
			return true, outPath
		}
	}
	return false, outPath
}
