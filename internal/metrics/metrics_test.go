package metrics

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu       sync.Mutex
	counters map[string]float64
	hists    map[string][]float64
	flushed  int
}

func newRecorder() *recorder {
	return &recorder{counters: map[string]float64{}, hists: map[string][]float64{}}
}

func (r *recorder) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name+"/"+labels["stage"]+"/"+labels["status"]] += delta
}

func (r *recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hists[name+"/"+labels["stage"]] = append(r.hists[name+"/"+labels["stage"]], value)
}

func (r *recorder) Flush() error {
	r.flushed++
	return nil
}

func TestRecordStage_ForwardsToBackend(t *testing.T) {
	rec := newRecorder()
	SetBackend(rec)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStage("encoding", "ok", 1500*time.Millisecond)
	RecordStage("encoding", "ok", time.Second)
	RecordStage("scaling", "error", 0)

	if got := rec.counters[StageTotal+"/encoding/ok"]; got != 2 {
		t.Fatalf("encoding ok count=%v, want 2", got)
	}
	if got := rec.counters[StageTotal+"/scaling/error"]; got != 1 {
		t.Fatalf("scaling error count=%v, want 1", got)
	}
	if got := rec.hists[StageDurationSeconds+"/encoding"]; len(got) != 2 || got[0] != 1.5 {
		t.Fatalf("durations=%v", got)
	}

	if err := Flush(); err != nil || rec.flushed != 1 {
		t.Fatalf("Flush err=%v flushed=%d", err, rec.flushed)
	}
}

func TestSetBackendNil_RestoresNop(t *testing.T) {
	SetBackend(nil)
	IncCounter(RowsTotal, 1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush: %v", err)
	}
}
