package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"dynstack.ai/internal/planner"
)

// HourlyWriter appends JSON lines to one zstd stream per UTC hour, stored as
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under dir. Reopening an existing hour
// appends a new zstd frame to it.
type HourlyWriter struct {
	dir    string
	prefix string
	clock  func() time.Time

	mu  sync.Mutex
	seg *segment
}

// segment is the open file of one hour.
type segment struct {
	hour string
	file *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
}

func NewHourlyWriter(dir, prefix string) *HourlyWriter {
	return &HourlyWriter{dir: dir, prefix: prefix, clock: time.Now}
}

// Append writes v as one line. The line is flushed to the file before
// Append returns.
func (w *HourlyWriter) Append(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.clock().UTC().Format("2006-01-02-15")
	if w.seg == nil || w.seg.hour != hour {
		if err := w.switchTo(hour); err != nil {
			return err
		}
	}
	if err := w.seg.enc.Encode(v); err != nil {
		return err
	}
	return w.seg.zw.Flush()
}

func (w *HourlyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg = nil
	return err
}

func (w *HourlyWriter) switchTo(hour string) error {
	if w.seg != nil {
		err := w.seg.close()
		w.seg = nil
		if err != nil {
			return fmt.Errorf("close %s segment: %w", w.prefix, err)
		}
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	seg, err := openSegment(filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour)), hour)
	if err != nil {
		return err
	}
	w.seg = seg
	return nil
}

func openSegment(path, hour string) (*segment, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, file: f, zw: zw, enc: json.NewEncoder(zw)}, nil
}

// close ends the zstd frame and the file.
func (s *segment) close() error {
	return errors.Join(s.zw.Close(), s.file.Close())
}

// PlanLogger writes one JSONL entry per planning cycle (compressed).
type PlanLogger struct{ w *HourlyWriter }

func NewPlanLogger(dataDir string) *PlanLogger {
	return &PlanLogger{w: NewHourlyWriter(PlanDir(dataDir), "plans")}
}

// PlanDir is where NewPlanLogger puts its files.
func PlanDir(dataDir string) string { return filepath.Join(dataDir, "plans") }

func (l *PlanLogger) Write(e planner.LogEntry) error { return l.w.Append(e) }
func (l *PlanLogger) Close() error                   { return l.w.Close() }
