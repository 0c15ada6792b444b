// Package journal appends every published signal to a daily JSONL file and
// gzips files past retention.
package journal

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"nifty-signals/internal/signal"
)

var ist = time.FixedZone("IST", 19800)

const ext = ".jsonl"

type Entry struct {
	Time string `json:"time"`
	signal.Evaluation
}

type Journal struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: filepath.Join(dir, "journal")}
}

func (j *Journal) path(t time.Time) string {
	return filepath.Join(j.dir, t.In(ist).Format("2006-01-02")+ext)
}

// Append writes one line per evaluation, in symbol order, stamped with now.
func (j *Journal) Append(now time.Time, evals map[string]signal.Evaluation) error {
	if len(evals) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	p := j.path(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	keys := make([]string, 0, len(evals))
	for k := range evals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	stamp := now.In(ist).Format("2006-01-02 15:04:05")
	for _, k := range keys {
		b, err := json.Marshal(Entry{Time: stamp, Evaluation: evals[k]})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, string(b)); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Read returns the entries journaled on day t.
func (j *Journal) Read(t time.Time) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path(t))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// CompressOlder gzips journal files last modified more than retentionDays
// ago and removes the originals.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ext {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			return os.Remove(p)
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		return os.Remove(p)
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
