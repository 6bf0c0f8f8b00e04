package inmemory

import (
	"sync"
	"time"
)

type Snapshot struct {
	Ticks            uint64            `json:"ticks"`
	LastTickMillis   int64             `json:"last_tick_ms"`
	LastTickAgents   int               `json:"last_tick_agents"`
	LastTickSettings int               `json:"last_tick_settings"`
	AgentsEvaluated  uint64            `json:"agents_evaluated"`
	AgentFailures    uint64            `json:"agent_failures"`
	ByTransition     map[string]uint64 `json:"by_transition"`
	ByCraftResult    map[string]uint64 `json:"by_craft_result"`
}

// Recorder keeps scheduler KPIs for the ops endpoint.
type Recorder struct {
	mu           sync.Mutex
	ticks        uint64
	lastTick     time.Duration
	lastAgents   int
	lastSettings int
	agents       uint64
	failures     uint64
	transitions  map[string]uint64
	crafts       map[string]uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		transitions: map[string]uint64{},
		crafts:      map[string]uint64{},
	}
}

func (r *Recorder) RecordTick(duration time.Duration, agents, settings int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
	r.lastTick = duration
	r.lastAgents = agents
	r.lastSettings = settings
	r.agents += uint64(agents)
}

func (r *Recorder) RecordTransition(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[action]++
}

func (r *Recorder) RecordAgentFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *Recorder) RecordCraft(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crafts[result]++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		Ticks:            r.ticks,
		LastTickMillis:   r.lastTick.Milliseconds(),
		LastTickAgents:   r.lastAgents,
		LastTickSettings: r.lastSettings,
		AgentsEvaluated:  r.agents,
		AgentFailures:    r.failures,
		ByTransition:     make(map[string]uint64, len(r.transitions)),
		ByCraftResult:    make(map[string]uint64, len(r.crafts)),
	}
	for k, v := range r.transitions {
		out.ByTransition[k] = v
	}
	for k, v := range r.crafts {
		out.ByCraftResult[k] = v
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}
