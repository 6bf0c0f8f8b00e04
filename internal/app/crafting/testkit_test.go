package crafting

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
	mu        sync.Mutex
	inventory map[int]int
	stamina   int
	craftErrs []error
	crafts    []int
	// marksAtCraft records how many MarkRun calls had happened when each
	// craft was submitted.
	marksAtCraft []int
	settings     *memSettings
}

func (l *fakeLedger) AgentState(context.Context, string) (ports.AgentState, error) {
	return ports.AgentState{}, errors.New("not used")
}

func (l *fakeLedger) AccountState(_ context.Context, accountID string) (ports.AccountState, error) {
	if accountID != "acct-0xop" {
		return ports.AccountState{}, ports.ErrNotFound
	}
	return ports.AccountState{Room: 1, Stamina: l.stamina}, nil
}

func (l *fakeLedger) AccountOf(_ context.Context, operator string) (string, error) {
	return "acct-" + operator, nil
}

func (l *fakeLedger) Inventory(context.Context, string) (map[int]int, error) {
	return l.inventory, nil
}

func (l *fakeLedger) HarvestsByTarget(context.Context, string) ([]ports.HarvestEntity, error) {
	return nil, errors.New("not used")
}

func (l *fakeLedger) StartHarvest(context.Context, string, int, ports.Credential) (ports.StartReceipt, error) {
	return ports.StartReceipt{}, errors.New("not used")
}

func (l *fakeLedger) StopHarvest(context.Context, string, ports.Credential) (ports.TxReceipt, error) {
	return ports.TxReceipt{}, errors.New("not used")
}

func (l *fakeLedger) Craft(_ context.Context, recipeID, _ int, cred ports.Credential) (ports.TxReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cred.Empty() {
		return ports.TxReceipt{}, errors.New("unsigned")
	}
	l.crafts = append(l.crafts, recipeID)
	if l.settings != nil {
		l.marksAtCraft = append(l.marksAtCraft, l.settings.markCount())
	}
	n := len(l.crafts) - 1
	if n < len(l.craftErrs) && l.craftErrs[n] != nil {
		return ports.TxReceipt{}, l.craftErrs[n]
	}
	return ports.TxReceipt{TxHash: "0xcraft"}, nil
}

type memSettings struct {
	mu    sync.Mutex
	marks []time.Time
}

func (s *memSettings) Get(context.Context, string) (kami.CraftingSetting, error) {
	return kami.CraftingSetting{}, ports.ErrNotFound
}

func (s *memSettings) Upsert(context.Context, kami.CraftingSetting) error { return nil }

func (s *memSettings) ListEnabled(context.Context) ([]kami.CraftingSetting, error) { return nil, nil }

func (s *memSettings) MarkRun(_ context.Context, _ string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = append(s.marks, at)
	return nil
}

func (s *memSettings) markCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marks)
}

type memAudit struct {
	mu     sync.Mutex
	events []kami.AuditEvent
}

func (a *memAudit) Record(_ context.Context, e kami.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *memAudit) last() kami.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return kami.AuditEvent{}
	}
	return a.events[len(a.events)-1]
}

type stubScope struct {
	lent int
}

func (s *stubScope) With(ctx context.Context, _ string, fn func(ctx context.Context, cred ports.Credential) error) error {
	s.lent++
	cred := ports.NewCredential([]byte("key"))
	defer cred.Wipe()
	return fn(ctx, cred)
}

type fakeClock struct {
	slept []time.Duration
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

type harness struct {
	ledger   *fakeLedger
	settings *memSettings
	audit    *memAudit
	scope    *stubScope
	clock    *fakeClock
	eval     Evaluator
}

// newHarness wires a catalog holding recipe 11: five of item 7 and 60
// stamina per run.
func newHarness() *harness {
	settings := &memSettings{}
	h := &harness{
		ledger:   &fakeLedger{inventory: map[int]int{7: 10}, stamina: 100, settings: settings},
		settings: settings,
		audit:    &memAudit{},
		scope:    &stubScope{},
		clock:    &fakeClock{},
	}
	catalog, err := kami.NewRecipeCatalog([]kami.Recipe{{
		ID:          11,
		Name:        "potion",
		Inputs:      []kami.RecipeInput{{ItemID: 7, Amount: 5}},
		StaminaCost: 60,
	}})
	if err != nil {
		panic(err)
	}
	h.eval = Evaluator{
		Ledger:   h.ledger,
		Settings: h.settings,
		Catalog:  catalog,
		Audit:    h.audit,
		Lock:     keylock.New(),
		Signer:   h.scope,
		Policy:   DefaultPolicy,
		Sleep:    h.clock.Sleep,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return testNow },
	}
	return h
}

func dueSetting() kami.CraftingSetting {
	return kami.CraftingSetting{
		OperatorIdentity: "0xop",
		RecipeID:         11,
		AmountPerRun:     1,
		IntervalMinutes:  60,
		IsEnabled:        true,
	}
}
