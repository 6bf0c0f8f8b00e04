package harvest

import (
	"context"
	"errors"
	"sync"
	"time"

	"autokami/internal/app/keylock"
	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"

	"github.com/rs/zerolog"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeLedger struct {
	mu       sync.Mutex
	agents   map[string]ports.AgentState
	accounts map[string]ports.AccountState
	harvests map[string][]ports.HarvestEntity
	startErr error
	stopErr  error
	scanErr  error
	starts   []string
	stops    []string
	scans    int
	nextTx   int
	// onStart runs inside StartHarvest, after the start is accepted.
	onStart func()
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		agents:   map[string]ports.AgentState{},
		accounts: map[string]ports.AccountState{},
		harvests: map[string][]ports.HarvestEntity{},
	}
}

func (l *fakeLedger) AgentState(_ context.Context, agentID string) (ports.AgentState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.agents[agentID]
	if !ok {
		return ports.AgentState{}, ports.ErrNotFound
	}
	return s, nil
}

func (l *fakeLedger) AccountState(_ context.Context, accountID string) (ports.AccountState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[accountID]
	if !ok {
		return ports.AccountState{}, ports.ErrNotFound
	}
	return a, nil
}

func (l *fakeLedger) AccountOf(_ context.Context, operator string) (string, error) {
	return "acct-" + operator, nil
}

func (l *fakeLedger) Inventory(context.Context, string) (map[int]int, error) {
	return map[int]int{}, nil
}

func (l *fakeLedger) HarvestsByTarget(_ context.Context, agentID string) ([]ports.HarvestEntity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scans++
	if l.scanErr != nil {
		return nil, l.scanErr
	}
	return l.harvests[agentID], nil
}

func (l *fakeLedger) StartHarvest(_ context.Context, agentID string, nodeIndex int, cred ports.Credential) (ports.StartReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cred.Empty() {
		return ports.StartReceipt{}, errors.New("unsigned")
	}
	l.starts = append(l.starts, agentID)
	if l.startErr != nil {
		return ports.StartReceipt{}, l.startErr
	}
	l.nextTx++
	s := l.agents[agentID]
	s.Activity = kami.ActivityHarvesting
	l.agents[agentID] = s
	id := "h-" + agentID
	l.harvests[agentID] = []ports.HarvestEntity{{ID: id, Active: true}}
	if l.onStart != nil {
		l.onStart()
	}
	return ports.StartReceipt{TxHash: txHash(l.nextTx), HarvestID: id}, nil
}

func (l *fakeLedger) StopHarvest(_ context.Context, harvestID string, cred ports.Credential) (ports.TxReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cred.Empty() {
		return ports.TxReceipt{}, errors.New("unsigned")
	}
	l.stops = append(l.stops, harvestID)
	if l.stopErr != nil {
		return ports.TxReceipt{}, l.stopErr
	}
	l.nextTx++
	for agentID, hs := range l.harvests {
		for i := range hs {
			if hs[i].ID == harvestID {
				hs[i].Active = false
				s := l.agents[agentID]
				s.Activity = kami.ActivityResting
				l.agents[agentID] = s
			}
		}
	}
	return ports.TxReceipt{TxHash: txHash(l.nextTx)}, nil
}

func (l *fakeLedger) Craft(context.Context, int, int, ports.Credential) (ports.TxReceipt, error) {
	return ports.TxReceipt{}, errors.New("not used")
}

func txHash(n int) string {
	return "0xtx" + string(rune('0'+n%10))
}

type memProfiles struct {
	mu    sync.Mutex
	byID  map[string]kami.AgentProfile
	saves int
}

func newMemProfiles(profiles ...kami.AgentProfile) *memProfiles {
	m := &memProfiles{byID: map[string]kami.AgentProfile{}}
	for _, p := range profiles {
		m.byID[p.AgentID] = p
	}
	return m
}

func (m *memProfiles) Get(_ context.Context, agentID string) (kami.AgentProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[agentID]
	if !ok {
		return kami.AgentProfile{}, ports.ErrNotFound
	}
	return p, nil
}

func (m *memProfiles) GetOrCreate(_ context.Context, agentID, operator string) (kami.AgentProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[agentID]
	if !ok {
		p = kami.NewAgentProfile(agentID, operator)
		m.byID[agentID] = p
	}
	return p, nil
}

func (m *memProfiles) Save(_ context.Context, p kami.AgentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.byID[p.AgentID] = p
	return nil
}

func (m *memProfiles) SaveState(_ context.Context, p kami.AgentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[p.AgentID]
	if !ok {
		return ports.ErrNotFound
	}
	m.saves++
	cur.Activity = p.Activity
	cur.LastHarvestStart = p.LastHarvestStart
	cur.LastCollect = p.LastCollect
	cur.TotalHarvests = p.TotalHarvests
	cur.TotalRests = p.TotalRests
	m.byID[p.AgentID] = cur
	return nil
}

func (m *memProfiles) SaveSettings(_ context.Context, p kami.AgentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[p.AgentID]
	if !ok {
		return ports.ErrNotFound
	}
	m.saves++
	cur.HarvestMinutes = p.HarvestMinutes
	cur.RestMinutes = p.RestMinutes
	cur.MinHealthThreshold = p.MinHealthThreshold
	cur.AutoHarvestEnabled = p.AutoHarvestEnabled
	cur.AutoCollectEnabled = p.AutoCollectEnabled
	cur.AutoRestartEnabled = p.AutoRestartEnabled
	cur.TargetNodeIndex = p.TargetNodeIndex
	cur.AutomationStartedAt = p.AutomationStartedAt
	m.byID[p.AgentID] = cur
	return nil
}

// set replaces the stored row, standing in for a write made by another
// request while the evaluator holds an older copy.
func (m *memProfiles) set(p kami.AgentProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.AgentID] = p
}

func (m *memProfiles) ListAutomated(context.Context) ([]kami.AgentProfile, error) {
	return nil, nil
}

func (m *memProfiles) get(agentID string) kami.AgentProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[agentID]
}

// memAudit is both the audit repository read by the resolver and the
// recorder the evaluator writes through.
type memAudit struct {
	mu     sync.Mutex
	events []kami.AuditEvent
}

func (a *memAudit) Record(_ context.Context, e kami.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e.CreatedAt = testNow.Add(time.Duration(len(a.events)) * time.Second)
	a.events = append(a.events, e)
	return nil
}

func (a *memAudit) Append(ctx context.Context, e kami.AuditEvent) error {
	return a.Record(ctx, e)
}

func (a *memAudit) LatestForAgent(_ context.Context, agentID string, actions []string) (kami.AuditEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.events) - 1; i >= 0; i-- {
		e := a.events[i]
		if e.AgentID != agentID {
			continue
		}
		for _, act := range actions {
			if e.Action == act {
				return e, nil
			}
		}
	}
	return kami.AuditEvent{}, ports.ErrNotFound
}

func (a *memAudit) List(context.Context, ports.AuditFilter) ([]kami.AuditEvent, error) {
	return a.events, nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

func (a *memAudit) last() kami.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return kami.AuditEvent{}
	}
	return a.events[len(a.events)-1]
}

type stubScope struct{}

func (stubScope) With(ctx context.Context, _ string, fn func(ctx context.Context, cred ports.Credential) error) error {
	cred := ports.NewCredential([]byte("key"))
	defer cred.Wipe()
	return fn(ctx, cred)
}

type harness struct {
	ledger   *fakeLedger
	profiles *memProfiles
	audit    *memAudit
	eval     Evaluator
}

func newHarness(profiles ...kami.AgentProfile) *harness {
	h := &harness{
		ledger:   newFakeLedger(),
		profiles: newMemProfiles(profiles...),
		audit:    &memAudit{},
	}
	h.eval = Evaluator{
		Ledger:   h.ledger,
		Profiles: h.profiles,
		Audit:    h.audit,
		Resolver: Resolver{Audit: h.audit, Ledger: h.ledger},
		Lock:     keylock.New(),
		Signer:   stubScope{},
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return testNow },
	}
	return h
}

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func harvestingProfile() kami.AgentProfile {
	p := kami.NewAgentProfile("42", "0xop")
	p.Activity = kami.ActivityHarvesting
	p.HarvestMinutes = 60
	p.MinHealthThreshold = 20
	p.AutoHarvestEnabled = true
	p.AutoCollectEnabled = true
	p.AutoRestartEnabled = true
	p.AutomationStartedAt = ago(24 * time.Hour)
	p.TargetNodeIndex = 3
	return p
}

func restingProfile() kami.AgentProfile {
	p := harvestingProfile()
	p.Activity = kami.ActivityResting
	p.RestMinutes = 30
	return p
}
