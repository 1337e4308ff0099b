package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"gravsim.dev/internal/sim/world"
)

// Segment name layouts. Both sort lexically in time order, which ListFiles relies on.
const (
	Hourly = "2006-01-02-15"
	Daily  = "2006-01-02"
)

// SegmentWriter appends JSON lines to zstd-compressed files named
// <prefix>-<segment>.jsonl.zst, opening a new file whenever the segment changes.
type SegmentWriter struct {
	dir    string
	prefix string
	layout string
	now    func() time.Time

	mu      sync.Mutex
	segment string
	f       *os.File
	enc     *zstd.Encoder
	buf     *bufio.Writer
	lines   uint64
}

func NewSegmentWriter(dir, prefix, layout string) *SegmentWriter {
	if layout == "" {
		layout = Hourly
	}
	return &SegmentWriter{dir: dir, prefix: prefix, layout: layout, now: time.Now}
}

// Lines is the number of entries written since the writer was created.
func (sw *SegmentWriter) Lines() uint64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.lines
}

func (sw *SegmentWriter) Append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s log: marshal: %w", sw.prefix, err)
	}
	b = append(b, '\n')

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if seg := sw.now().UTC().Format(sw.layout); seg != sw.segment || sw.buf == nil {
		if err := sw.openLocked(seg); err != nil {
			return err
		}
	}
	if _, err := sw.buf.Write(b); err != nil {
		return err
	}
	// Flushed per entry so a crash loses at most the open zstd frame tail.
	if err := sw.buf.Flush(); err != nil {
		return err
	}
	sw.lines++
	return nil
}

func (sw *SegmentWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.closeLocked()
}

func (sw *SegmentWriter) openLocked(seg string) error {
	if err := sw.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(sw.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(sw.dir, sw.prefix+"-"+seg+".jsonl.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	sw.segment, sw.f, sw.enc = seg, f, enc
	sw.buf = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (sw *SegmentWriter) closeLocked() error {
	if sw.f == nil {
		return nil
	}
	_ = sw.buf.Flush()
	err := sw.enc.Close()
	if cerr := sw.f.Close(); err == nil {
		err = cerr
	}
	sw.f, sw.enc, sw.buf = nil, nil, nil
	return err
}

// TickLogger records every applied tick under <worldDir>/events.
type TickLogger struct{ *SegmentWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{NewSegmentWriter(filepath.Join(worldDir, "events"), "events", Hourly)}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error { return l.Append(e) }

// MergeLogger records every merge under <worldDir>/merges.
type MergeLogger struct{ *SegmentWriter }

func NewMergeLogger(worldDir string) *MergeLogger {
	return &MergeLogger{NewSegmentWriter(filepath.Join(worldDir, "merges"), "merges", Hourly)}
}

func (l *MergeLogger) WriteMerge(e world.MergeEntry) error { return l.Append(e) }
