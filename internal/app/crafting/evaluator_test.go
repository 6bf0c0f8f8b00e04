package crafting

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

func TestEvaluate_CraftsOnFirstAttempt(t *testing.T) {
	h := newHarness()

	report, err := h.eval.Evaluate(context.Background(), dueSetting())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Result != ResultCrafted || report.Attempts != 1 || report.TxHash != "0xcraft" {
		t.Fatalf("report=%+v", report)
	}
	if len(h.clock.slept) != 0 {
		t.Fatalf("slept %v on a first-attempt success", h.clock.slept)
	}
	if len(h.settings.marks) != 1 || !h.settings.marks[0].Equal(testNow) {
		t.Fatalf("marks=%v want one at %v", h.settings.marks, testNow)
	}
	if last := h.audit.last(); last.Action != kami.ActionAutoCraft || last.Status != kami.StatusSuccess {
		t.Fatalf("last audit=%s/%s", last.Action, last.Status)
	}
}

func TestEvaluate_InventoryShortfallSkips(t *testing.T) {
	h := newHarness()
	h.ledger.inventory = map[int]int{7: 2}

	report, err := h.eval.Evaluate(context.Background(), dueSetting())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Result != ResultSkippedInventory {
		t.Fatalf("result=%s want skipped_inventory", report.Result)
	}
	want := []kami.Shortfall{{ItemID: 7, Required: 5, Current: 2}}
	if !reflect.DeepEqual(report.Shortfalls, want) {
		t.Fatalf("shortfalls=%+v want %+v", report.Shortfalls, want)
	}
	if len(h.ledger.crafts) != 0 {
		t.Fatalf("craft submitted despite shortfall")
	}
	if len(h.settings.marks) != 1 {
		t.Fatalf("lastRunAt advanced %d times want 1", len(h.settings.marks))
	}
	last := h.audit.last()
	if last.Action != kami.ActionAutoCraftSkip || last.Status != kami.StatusInfo {
		t.Fatalf("last audit=%s/%s want auto_craft_skip/info", last.Action, last.Status)
	}
	if got, ok := last.Metadata["shortfalls"].([]kami.Shortfall); !ok || !reflect.DeepEqual(got, want) {
		t.Fatalf("audit shortfalls=%v want %v", last.Metadata["shortfalls"], want)
	}
}

func TestEvaluate_InsufficientStaminaSkipsWithoutSubmission(t *testing.T) {
	h := newHarness()
	h.ledger.stamina = 40

	report, err := h.eval.Evaluate(context.Background(), dueSetting())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Result != ResultSkippedStamina {
		t.Fatalf("result=%s want skipped_stamina", report.Result)
	}
	if len(h.ledger.crafts) != 0 || h.scope.lent != 0 {
		t.Fatalf("crafts=%v credentials lent=%d want none", h.ledger.crafts, h.scope.lent)
	}
	if len(h.settings.marks) != 1 {
		t.Fatalf("lastRunAt advanced %d times want 1", len(h.settings.marks))
	}
}

func TestEvaluate_StaminaScalesWithAmount(t *testing.T) {
	h := newHarness()
	h.ledger.inventory = map[int]int{7: 10}
	h.ledger.stamina = 100
	s := dueSetting()
	s.AmountPerRun = 2

	report, err := h.eval.Evaluate(context.Background(), s)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Result != ResultSkippedStamina {
		t.Fatalf("result=%s want skipped_stamina for 120 stamina needed", report.Result)
	}
}

func TestEvaluate_RetriesExactlyThreeTimes(t *testing.T) {
	h := newHarness()
	h.ledger.craftErrs = []error{ports.ErrTxFailed, ports.ErrTimeout, ports.ErrTxFailed, nil}

	report, err := h.eval.Evaluate(context.Background(), dueSetting())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Result != ResultFailed || report.Attempts != 3 {
		t.Fatalf("report=%+v want failed after 3 attempts", report)
	}
	if len(h.ledger.crafts) != 3 || h.scope.lent != 3 {
		t.Fatalf("crafts=%d credentials lent=%d want 3 each", len(h.ledger.crafts), h.scope.lent)
	}
	wantSleeps := []time.Duration{time.Minute, time.Minute}
	if !reflect.DeepEqual(h.clock.slept, wantSleeps) {
		t.Fatalf("slept=%v want %v", h.clock.slept, wantSleeps)
	}
	if !reflect.DeepEqual(h.ledger.marksAtCraft, []int{0, 0, 0}) {
		t.Fatalf("lastRunAt advanced between retries: %v", h.ledger.marksAtCraft)
	}
	if len(h.settings.marks) != 1 {
		t.Fatalf("lastRunAt advanced %d times want 1", len(h.settings.marks))
	}
	if last := h.audit.last(); last.Action != kami.ActionAutoCraftFail || last.Status != kami.StatusError {
		t.Fatalf("last audit=%s/%s want auto_craft_fail/error", last.Action, last.Status)
	}
}

func TestEvaluate_SucceedsOnRetry(t *testing.T) {
	h := newHarness()
	h.ledger.craftErrs = []error{ports.ErrTimeout}

	report, err := h.eval.Evaluate(context.Background(), dueSetting())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Result != ResultCrafted || report.Attempts != 2 {
		t.Fatalf("report=%+v want crafted on attempt 2", report)
	}
	if len(h.clock.slept) != 1 || len(h.settings.marks) != 1 {
		t.Fatalf("slept=%v marks=%d", h.clock.slept, len(h.settings.marks))
	}
}

func TestEvaluate_UnknownRecipeSkipsSilently(t *testing.T) {
	h := newHarness()
	s := dueSetting()
	s.RecipeID = 999

	report, err := h.eval.Evaluate(context.Background(), s)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Result != ResultUnknownRecipe {
		t.Fatalf("result=%s want unknown_recipe", report.Result)
	}
	if len(h.audit.events) != 0 || len(h.settings.marks) != 0 {
		t.Fatalf("unknown recipe produced audit=%d marks=%d", len(h.audit.events), len(h.settings.marks))
	}
}

func TestEvaluate_ReadFailureLeavesLastRunUntouched(t *testing.T) {
	h := newHarness()
	h.eval.Ledger = brokenInventory{fakeLedger: h.ledger}

	_, err := h.eval.Evaluate(context.Background(), dueSetting())
	if !errors.Is(err, ports.ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
	if len(h.settings.marks) != 0 {
		t.Fatalf("lastRunAt advanced after read failure")
	}
}

type brokenInventory struct {
	*fakeLedger
}

func (brokenInventory) Inventory(context.Context, string) (map[int]int, error) {
	return nil, ports.ErrUnavailable
}
