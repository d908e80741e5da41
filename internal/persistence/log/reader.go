package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"dynstack.ai/internal/planner"
)

// PlanFiles lists the plan log files in dir, oldest first.
func PlanFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "plans-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	// The hour stamp sorts lexically.
	sort.Strings(files)
	return files, nil
}

// ReadPlans calls fn for every entry in path, in write order. It stops at the
// first error fn returns.
func ReadPlans(path string, fn func(planner.LogEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e planner.LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
