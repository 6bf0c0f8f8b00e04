package inmemory

import (
	"testing"
	"time"
)

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder()
	r.RecordTick(1500*time.Millisecond, 3, 2)
	r.RecordTick(200*time.Millisecond, 4, 1)
	r.RecordTransition("auto_stop")
	r.RecordTransition("auto_stop")
	r.RecordTransition("auto_start")
	r.RecordAgentFailure()
	r.RecordCraft("crafted")

	s := r.Snapshot()
	if s.Ticks != 2 {
		t.Fatalf("expected ticks 2, got %d", s.Ticks)
	}
	if s.LastTickMillis != 200 || s.LastTickAgents != 4 || s.LastTickSettings != 1 {
		t.Fatalf("expected last tick 200ms/4/1, got %+v", s)
	}
	if s.AgentsEvaluated != 7 {
		t.Fatalf("expected agents 7, got %d", s.AgentsEvaluated)
	}
	if s.AgentFailures != 1 {
		t.Fatalf("expected failures 1, got %d", s.AgentFailures)
	}
	if s.ByTransition["auto_stop"] != 2 || s.ByTransition["auto_start"] != 1 {
		t.Fatalf("unexpected transitions %v", s.ByTransition)
	}
	if s.ByCraftResult["crafted"] != 1 {
		t.Fatalf("unexpected crafts %v", s.ByCraftResult)
	}
}

func TestRecorderSnapshotIsACopy(t *testing.T) {
	r := NewRecorder()
	r.RecordTransition("auto_stop")
	s := r.Snapshot()
	s.ByTransition["auto_stop"] = 99
	if r.Snapshot().ByTransition["auto_stop"] != 1 {
		t.Fatalf("snapshot mutation leaked into recorder")
	}
}
