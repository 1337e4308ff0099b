package log

import (
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"gravsim.dev/internal/sim/body"
	"gravsim.dev/internal/sim/engine"
	"gravsim.dev/internal/sim/world"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	entries := []world.TickLogEntry{
		{Tick: 0, Inserts: []body.Body{body.New(r2.Vec{X: 1, Y: 2}, 3)}, Bodies: 1, Digest: "a"},
		{Tick: 1, Removes: []int{0}, Bodies: 0, Digest: "b"},
		{Tick: 2, Paused: true, Digest: "c"},
	}
	for _, e := range entries {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(filepath.Join(dir, "events"), "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files=%v want one", files)
	}
	var got []world.TickLogEntry
	if err := ReadTicks(files[0], func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("read %d entries want %d", len(got), len(entries))
	}
	if got[0].Inserts[0].Pos != (r2.Vec{X: 1, Y: 2}) || got[0].Inserts[0].Mass != 3 {
		t.Fatalf("insert mismatch: %+v", got[0].Inserts[0])
	}
	if len(got[1].Removes) != 1 || got[1].Removes[0] != 0 {
		t.Fatalf("removes mismatch: %+v", got[1])
	}
	if !got[2].Paused || got[2].Digest != "c" {
		t.Fatalf("paused entry mismatch: %+v", got[2])
	}
}

func TestMergeLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewMergeLogger(dir)
	want := world.MergeEntry{
		Tick:     7,
		Survivor: 1,
		Absorbed: []int{2, 4},
		Result:   body.Body{Pos: r2.Vec{X: 5}, Prev: r2.Vec{X: 5}, Mass: 30, Fixed: true, Tag: body.StarTag},
	}
	if err := l.WriteMerge(want); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = l.Close()

	files, err := ListFiles(filepath.Join(dir, "merges"), "merges")
	if err != nil || len(files) != 1 {
		t.Fatalf("list: %v %v", files, err)
	}
	var got []world.MergeEntry
	if err := ReadMerges(files[0], func(e world.MergeEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Survivor != 1 || len(got[0].Absorbed) != 2 || got[0].Result != want.Result {
		t.Fatalf("got %+v", got)
	}
}

func TestListFiles_IgnoresOtherPrefixes(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	_ = tl.WriteTick(world.TickLogEntry{Tick: 1, Merges: []engine.Merge{{Survivor: 0, Absorbed: []int{1}}}})
	_ = tl.Close()

	files, err := ListFiles(filepath.Join(dir, "events"), "merges")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestSegmentWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	sw := NewSegmentWriter(dir, "events", Hourly)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	sw.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if err := sw.Append(world.TickLogEntry{Tick: uint64(i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
		clock = clock.Add(time.Hour)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sw.Lines() != 3 {
		t.Fatalf("lines=%d want 3", sw.Lines())
	}

	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"events-2026-03-01-10.jsonl.zst", "events-2026-03-01-11.jsonl.zst", "events-2026-03-01-12.jsonl.zst"}
	if len(files) != len(want) {
		t.Fatalf("files=%v", files)
	}
	var ticks []uint64
	for i, f := range files {
		if filepath.Base(f) != want[i] {
			t.Fatalf("file %d = %s want %s", i, filepath.Base(f), want[i])
		}
		if err := ReadTicks(f, func(e world.TickLogEntry) error {
			ticks = append(ticks, e.Tick)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(ticks) != 3 || ticks[0] != 0 || ticks[2] != 2 {
		t.Fatalf("ticks=%v", ticks)
	}
}

func TestSegmentWriter_CloseWithoutWrites(t *testing.T) {
	sw := NewSegmentWriter(t.TempDir(), "merges", Daily)
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
