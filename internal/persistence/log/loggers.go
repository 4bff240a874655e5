package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"taintcraft.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to one zstd file per UTC hour.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines into the current zstd frame.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var first error
	if w.w != nil {
		first = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil && first == nil {
			first = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err != nil && first == nil {
			first = err
		}
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return first
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// EventLogger records the world event stream. Ticks without events are
// skipped except for a digest checkpoint every checkpointEvery ticks.
type EventLogger struct {
	w               *JSONLZstdWriter
	checkpointEvery uint64
}

func NewEventLogger(worldDir string, checkpointEvery int) *EventLogger {
	if checkpointEvery <= 0 {
		checkpointEvery = 100
	}
	return &EventLogger{
		w:               NewJSONLZstdWriter(filepath.Join(worldDir, "events"), "events"),
		checkpointEvery: uint64(checkpointEvery),
	}
}

func (l *EventLogger) WriteTick(e world.TickLogEntry) error {
	if len(e.Events) == 0 && e.Tick%l.checkpointEvery != 0 {
		return nil
	}
	if err := l.w.Write(e); err != nil {
		return err
	}
	if e.Tick%l.checkpointEvery == 0 {
		return l.w.Flush()
	}
	return nil
}

func (l *EventLogger) Close() error { return l.w.Close() }

// ReadTicks decodes every entry of one events-*.jsonl.zst file.
func ReadTicks(path string) ([]world.TickLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []world.TickLogEntry
	jd := json.NewDecoder(dec)
	for {
		var e world.TickLogEntry
		if err := jd.Decode(&e); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		out = append(out, e)
	}
}
