package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	runs  int
	moves int
	err   error
}

func (r *recordSink) RecordRun(RunSummary) error {
	r.runs++
	return r.err
}

func (r *recordSink) RecordMove(MoveEvent) error {
	r.moves++
	return nil
}

type runOnlySink struct{ runs int }

func (r *runOnlySink) RecordRun(RunSummary) error {
	r.runs++
	return nil
}

// TestMultiSink ensures events are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &runOnlySink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordRun(RunSummary{RunID: "r1"}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := m.RecordMove(MoveEvent{RunID: "r1"}); err != nil {
		t.Fatalf("record move: %v", err)
	}
	if s1.runs != 1 || s2.runs != 1 || s1.moves != 1 {
		t.Fatalf("events not forwarded: %+v %+v", s1, s2)
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	failing := &recordSink{err: errors.New("down")}
	after := &runOnlySink{}
	if err := NewMultiSink(failing, after).RecordRun(RunSummary{}); err == nil {
		t.Fatal("expected error")
	}
	if after.runs != 0 {
		t.Fatalf("sink after failure should not be called")
	}
}
