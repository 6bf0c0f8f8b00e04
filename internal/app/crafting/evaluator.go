package crafting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autokami/internal/app/ports"
	"autokami/internal/app/retry"
	"autokami/internal/domain/kami"

	"github.com/rs/zerolog"
)

type Result string

const (
	ResultCrafted          Result = "crafted"
	ResultSkippedInventory Result = "skipped_inventory"
	ResultSkippedStamina   Result = "skipped_stamina"
	ResultFailed           Result = "failed"
	ResultUnknownRecipe    Result = "unknown_recipe"
)

// DefaultPolicy is three attempts a minute apart.
var DefaultPolicy = retry.Policy{MaxAttempts: 3, Delay: 60 * time.Second}

type Report struct {
	Result     Result
	Attempts   int
	TxHash     string
	Shortfalls []kami.Shortfall
}

// Evaluator runs one crafting cycle for a due setting.
type Evaluator struct {
	Ledger   ports.Ledger
	Settings ports.CraftingSettingRepository
	Catalog  kami.RecipeCatalog
	Audit    ports.Auditor
	Lock     ports.Locker
	Signer   ports.CredentialScope
	Policy   retry.Policy
	Sleep    retry.Sleeper
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Evaluate checks the inventory and stamina guards and then crafts with
// bounded retry. lastRunAt is advanced once, after the final outcome; a read
// failure before any guard decided leaves it untouched.
func (e Evaluator) Evaluate(ctx context.Context, setting kami.CraftingSetting) (Report, error) {
	log := e.Logger.With().
		Str("operator", setting.OperatorIdentity).
		Int("recipe_id", setting.RecipeID).
		Logger()

	recipe, ok := e.Catalog.Lookup(setting.RecipeID)
	if !ok {
		log.Warn().Msg("crafting setting references unknown recipe, skipping")
		return Report{Result: ResultUnknownRecipe}, nil
	}
	amount := setting.AmountPerRun
	if amount < 1 {
		amount = 1
	}

	accountID, err := e.Ledger.AccountOf(ctx, setting.OperatorIdentity)
	if err != nil {
		return Report{}, fmt.Errorf("resolve account: %w", err)
	}
	inventory, err := e.Ledger.Inventory(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("read inventory: %w", err)
	}
	if shortfalls := recipe.Shortfalls(inventory, amount); len(shortfalls) > 0 {
		report := Report{Result: ResultSkippedInventory, Shortfalls: shortfalls}
		e.record(ctx, setting, kami.ActionAutoCraftSkip, kami.StatusInfo,
			"insufficient materials: "+joinShortfalls(shortfalls),
			map[string]any{"recipe_id": recipe.ID, "amount": amount, "shortfalls": shortfalls})
		return report, e.markRun(ctx, setting)
	}

	account, err := e.Ledger.AccountState(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("read account state: %w", err)
	}
	if needed := recipe.StaminaNeeded(amount); account.Stamina < needed {
		e.record(ctx, setting, kami.ActionAutoCraftSkip, kami.StatusInfo,
			fmt.Sprintf("insufficient stamina: need %d, have %d", needed, account.Stamina),
			map[string]any{"recipe_id": recipe.ID, "amount": amount, "stamina": account.Stamina, "stamina_required": needed})
		return Report{Result: ResultSkippedStamina}, e.markRun(ctx, setting)
	}

	var receipt ports.TxReceipt
	attempts, craftErr := retry.Do(ctx, e.policy(), e.Sleep, func(ctx context.Context, attempt int) error {
		err := e.Lock.RunExclusive(ctx, setting.OperatorIdentity, func(ctx context.Context) error {
			return e.Signer.With(ctx, setting.OperatorIdentity, func(ctx context.Context, cred ports.Credential) error {
				var err error
				receipt, err = e.Ledger.Craft(ctx, recipe.ID, amount, cred)
				return err
			})
		})
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("craft attempt failed")
		}
		return err
	})

	if craftErr != nil {
		e.record(ctx, setting, kami.ActionAutoCraftFail, kami.StatusError,
			fmt.Sprintf("craft of recipe %d failed after %d attempts: %v", recipe.ID, attempts, craftErr),
			map[string]any{"recipe_id": recipe.ID, "amount": amount, "attempts": attempts})
		return Report{Result: ResultFailed, Attempts: attempts}, e.markRun(ctx, setting)
	}
	e.record(ctx, setting, kami.ActionAutoCraft, kami.StatusSuccess,
		fmt.Sprintf("crafted recipe %d x%d", recipe.ID, amount),
		map[string]any{"recipe_id": recipe.ID, "amount": amount, "attempts": attempts, "tx_hash": receipt.TxHash})
	return Report{Result: ResultCrafted, Attempts: attempts, TxHash: receipt.TxHash}, e.markRun(ctx, setting)
}

func (e Evaluator) markRun(ctx context.Context, setting kami.CraftingSetting) error {
	if err := e.Settings.MarkRun(ctx, setting.OperatorIdentity, e.now()); err != nil {
		return fmt.Errorf("advance last run: %w", err)
	}
	return nil
}

func (e Evaluator) record(ctx context.Context, setting kami.CraftingSetting, action string, status kami.AuditStatus, msg string, meta map[string]any) {
	if e.Audit == nil {
		return
	}
	err := e.Audit.Record(ctx, kami.AuditEvent{
		OperatorIdentity: setting.OperatorIdentity,
		Action:           action,
		Status:           status,
		Message:          msg,
		Metadata:         meta,
	})
	if err != nil {
		e.Logger.Error().Err(err).Str("operator", setting.OperatorIdentity).Str("action", action).Msg("record audit event")
	}
}

func (e Evaluator) policy() retry.Policy {
	if e.Policy.MaxAttempts == 0 {
		return DefaultPolicy
	}
	return e.Policy
}

func (e Evaluator) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now()
}

func joinShortfalls(shortfalls []kami.Shortfall) string {
	parts := make([]string, 0, len(shortfalls))
	for _, s := range shortfalls {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "; ")
}
