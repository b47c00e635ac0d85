package streamingest

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func newBufferedFrame(idx int, ts time.Time) bufferedFrame {
	return bufferedFrame{mat: gocv.NewMat(), index: idx, timestamp: ts}
}

func TestFrameRingDropsOldestWhenFull(t *testing.T) {
	r := newFrameRing(2)
	base := time.Now()
	r.push(newBufferedFrame(0, base))
	r.push(newBufferedFrame(1, base.Add(time.Second)))
	r.push(newBufferedFrame(2, base.Add(2*time.Second)))

	snap := r.snapshot(10)
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2 after eviction", len(snap))
	}
	if snap[0].index != 1 || snap[1].index != 2 {
		t.Errorf("snapshot indices = [%d %d], want [1 2]", snap[0].index, snap[1].index)
	}
	r.closeAll()
}

func TestFrameRingSnapshotBoundedByN(t *testing.T) {
	r := newFrameRing(10)
	base := time.Now()
	for i := 0; i < 5; i++ {
		r.push(newBufferedFrame(i, base.Add(time.Duration(i)*time.Second)))
	}
	snap := r.snapshot(2)
	if len(snap) != 2 {
		t.Fatalf("snapshot(2) len = %d, want 2", len(snap))
	}
	if snap[1].index != 4 {
		t.Errorf("newest entry index = %d, want 4", snap[1].index)
	}
	r.closeAll()
}

func TestFrameRingEstimatedFPS(t *testing.T) {
	r := newFrameRing(10)
	base := time.Now()
	if got := r.estimatedFPS(); got != 0 {
		t.Errorf("estimatedFPS on empty ring = %v, want 0", got)
	}
	r.push(newBufferedFrame(0, base))
	r.push(newBufferedFrame(1, base.Add(500*time.Millisecond)))
	r.push(newBufferedFrame(2, base.Add(time.Second)))

	fps := r.estimatedFPS()
	if fps < 1.9 || fps > 2.1 {
		t.Errorf("estimatedFPS = %v, want ~2.0", fps)
	}
	r.closeAll()
}

func TestSampleGateRespectsInterval(t *testing.T) {
	g := &sampleGate{interval: time.Second}
	now := time.Now()
	if !g.ready(now) {
		t.Fatal("first call to ready should always be true")
	}
	if g.ready(now.Add(100 * time.Millisecond)) {
		t.Error("ready within the interval should be false")
	}
	if !g.ready(now.Add(2 * time.Second)) {
		t.Error("ready after the interval elapses should be true")
	}
}

func TestHistoryEvictsOldestOnOverflow(t *testing.T) {
	h := newHistory(2)
	h.append(Result{StreamID: "s", Timestamp: time.Unix(1, 0)})
	h.append(Result{StreamID: "s", Timestamp: time.Unix(2, 0)})
	h.append(Result{StreamID: "s", Timestamp: time.Unix(3, 0)})

	if h.len() != 2 {
		t.Fatalf("history len = %d, want 2", h.len())
	}
	results := h.results(0, nil)
	if results[0].Timestamp.Unix() != 2 {
		t.Errorf("oldest surviving entry = %v, want unix 2", results[0].Timestamp.Unix())
	}
}

func TestHistoryResultsFiltersBySince(t *testing.T) {
	h := newHistory(10)
	h.append(Result{Timestamp: time.Unix(1, 0)})
	h.append(Result{Timestamp: time.Unix(2, 0)})
	h.append(Result{Timestamp: time.Unix(3, 0)})

	since := time.Unix(2, 0)
	got := h.results(0, &since)
	if len(got) != 2 {
		t.Fatalf("results since unix 2 len = %d, want 2", len(got))
	}
}

func TestHistoryResultsLimit(t *testing.T) {
	h := newHistory(10)
	for i := 1; i <= 5; i++ {
		h.append(Result{Timestamp: time.Unix(int64(i), 0)})
	}
	got := h.results(2, nil)
	if len(got) != 2 {
		t.Fatalf("results with limit 2 len = %d, want 2", len(got))
	}
	if got[len(got)-1].Timestamp.Unix() != 5 {
		t.Error("limited results should keep the newest entries")
	}
}
