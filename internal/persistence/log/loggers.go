package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"smartbelt.ai/internal/sim/geom"
	"smartbelt.ai/internal/sim/smartbelt"
)

// SegmentWriter appends JSON lines to zstd-compressed segment files, one
// segment per UTC hour, named <prefix>-YYYY-MM-DD-HH.jsonl.zst. A segment
// reopened after Close is appended to as a new zstd frame.
type SegmentWriter struct {
	dir    string
	prefix string
	clock  func() time.Time

	mu    sync.Mutex
	seg   *segment
	lines int64
}

func NewSegmentWriter(dir, prefix string) *SegmentWriter {
	return &SegmentWriter{dir: dir, prefix: prefix, clock: time.Now}
}

type segment struct {
	path string
	hour time.Time
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
}

func openSegment(path string, hour time.Time) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{path: path, hour: hour, file: f, zw: zw, buf: bufio.NewWriterSize(zw, 64*1024)}, nil
}

// writeLine flushes through the encoder so a crash loses at most the
// current frame.
func (s *segment) writeLine(b []byte) error {
	if _, err := s.buf.Write(b); err != nil {
		return err
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.zw.Flush()
}

func (s *segment) close() error {
	return errors.Join(s.buf.Flush(), s.zw.Close(), s.file.Close())
}

func (w *SegmentWriter) segmentPath(hour time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour.Format("2006-01-02-15")))
}

// Write marshals v and appends it as one line. Values that fail to marshal
// never open or rotate a segment.
func (w *SegmentWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	hour := w.clock().UTC().Truncate(time.Hour)
	if w.seg == nil || !w.seg.hour.Equal(hour) {
		if w.seg != nil {
			err := w.seg.close()
			w.seg = nil
			if err != nil {
				return err
			}
		}
		seg, err := openSegment(w.segmentPath(hour), hour)
		if err != nil {
			return err
		}
		w.seg = seg
	}
	if err := w.seg.writeLine(b); err != nil {
		return err
	}
	w.lines++
	return nil
}

// Path is the segment being written, or "" when none is open.
func (w *SegmentWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return ""
	}
	return w.seg.path
}

// Lines is the number of lines written since the writer was created.
func (w *SegmentWriter) Lines() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg = nil
	return err
}

// ReadJSONLZstd calls fn for every line of a segment written by SegmentWriter.
// Files appended to across restarts hold several zstd frames; all are read.
func ReadJSONLZstd(path string, fn func(line []byte) error) error {
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
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// DragLogger writes one JSONL entry per finished drag (compressed).
type DragLogger struct{ w *SegmentWriter }

func NewDragLogger(dataDir string) *DragLogger {
	return &DragLogger{w: NewSegmentWriter(filepath.Join(dataDir, "drags"), "drags")}
}

func (l *DragLogger) WriteDrag(v smartbelt.Record) error { return l.w.Write(v) }
func (l *DragLogger) Written() int64                     { return l.w.Lines() }
func (l *DragLogger) Close() error                       { return l.w.Close() }

// ErrorEntry is one drag error as it was reported.
type ErrorEntry struct {
	Time string                `json:"time"`
	Pos  geom.Pos              `json:"pos"`
	Err  smartbelt.ActionError `json:"err"`
}

// ErrorLogger streams drag errors to compressed JSONL as they happen. It is
// a smartbelt.ErrorSink; write failures are counted, not returned.
type ErrorLogger struct {
	w      *SegmentWriter
	failed atomic.Int64
}

func NewErrorLogger(dataDir string) *ErrorLogger {
	return &ErrorLogger{w: NewSegmentWriter(filepath.Join(dataDir, "errors"), "errors")}
}

func (l *ErrorLogger) HandleError(p geom.Pos, err smartbelt.ActionError) {
	e := ErrorEntry{Time: time.Now().UTC().Format(time.RFC3339Nano), Pos: p, Err: err}
	if werr := l.w.Write(e); werr != nil {
		l.failed.Add(1)
	}
}

// Failed is the number of entries that could not be written.
func (l *ErrorLogger) Failed() int64 { return l.failed.Load() }
func (l *ErrorLogger) Close() error  { return l.w.Close() }
