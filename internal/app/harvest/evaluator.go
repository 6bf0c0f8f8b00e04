package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"

	"github.com/rs/zerolog"
)

// Reconciliation describes what the ledger check did to the cached activity.
type Reconciliation int

const (
	Unchanged Reconciliation = iota
	CorrectedToHarvesting
	CorrectedToResting
)

func (r Reconciliation) String() string {
	switch r {
	case CorrectedToHarvesting:
		return "corrected_to_harvesting"
	case CorrectedToResting:
		return "corrected_to_resting"
	default:
		return "unchanged"
	}
}

type Transition string

const (
	TransitionNone            Transition = "none"
	TransitionLowHealthStop   Transition = kami.ActionLowHealthStop
	TransitionAutoStop        Transition = kami.ActionAutoStop
	TransitionAutoStart       Transition = kami.ActionAutoStart
	TransitionLocationBlocked Transition = "location_blocked"
)

type Outcome struct {
	Reconciliation Reconciliation
	Transition     Transition
	TxHash         string
}

// AgentRoomPolicy decides what a kami standing in a room other than its
// target node means for a start. The account's room is always enforced.
type AgentRoomPolicy string

const (
	// AgentRoomAdvisory logs the mismatch and starts anyway.
	AgentRoomAdvisory AgentRoomPolicy = "advisory"
	// AgentRoomStrict blocks the start like an account mismatch.
	AgentRoomStrict AgentRoomPolicy = "strict"
)

// Evaluator runs one automation step for a kami: reconcile with the ledger,
// then start or stop its harvest when a guard says so.
type Evaluator struct {
	Ledger     ports.Ledger
	Profiles   ports.ProfileRepository
	Audit      ports.Auditor
	Resolver   Resolver
	Lock       ports.Locker
	Signer     ports.CredentialScope
	TxManager  ports.TxManager
	RoomPolicy AgentRoomPolicy
	Logger     zerolog.Logger
	Now        func() time.Time
}

func (e Evaluator) Evaluate(ctx context.Context, profile kami.AgentProfile) (Outcome, error) {
	now := e.now()
	out := Outcome{Transition: TransitionNone}

	state, err := e.Ledger.AgentState(ctx, profile.AgentID)
	if err != nil {
		return out, fmt.Errorf("read kami state: %w", err)
	}
	profile, out.Reconciliation, err = e.reconcile(ctx, profile, state, now)
	if err != nil {
		return out, err
	}

	switch profile.Activity {
	case kami.ActivityHarvesting:
		out.Transition, out.TxHash, err = e.evaluateHarvesting(ctx, profile, state, now)
	case kami.ActivityResting:
		out.Transition, out.TxHash, err = e.evaluateResting(ctx, profile, state, now)
	}
	return out, err
}

func (e Evaluator) reconcile(ctx context.Context, profile kami.AgentProfile, state ports.AgentState, now time.Time) (kami.AgentProfile, Reconciliation, error) {
	if !state.Activity.Valid() {
		return profile, Unchanged, fmt.Errorf("%w: %q", ErrUnexpectedActivity, state.Activity)
	}
	if profile.Activity == state.Activity {
		return profile, Unchanged, nil
	}

	cached := profile.Activity
	profile.SyncActivity(state.Activity, now)
	if err := e.Profiles.SaveState(ctx, profile); err != nil {
		return profile, Unchanged, fmt.Errorf("save synced state: %w", err)
	}
	e.record(ctx, profile, kami.ActionStateSync, kami.StatusInfo,
		fmt.Sprintf("cached state %s corrected to %s from ledger", cached, state.Activity),
		map[string]any{"from": string(cached), "to": string(state.Activity)})

	if state.Activity == kami.ActivityHarvesting {
		return profile, CorrectedToHarvesting, nil
	}
	return profile, CorrectedToResting, nil
}

func (e Evaluator) evaluateHarvesting(ctx context.Context, profile kami.AgentProfile, state ports.AgentState, now time.Time) (Transition, string, error) {
	if profile.VitalityLow(state.Vitality) {
		msg := fmt.Sprintf("vitality %d below threshold %d, stopping harvest", state.Vitality, profile.MinHealthThreshold)
		return e.stopFor(ctx, profile, TransitionLowHealthStop, msg, state, now)
	}
	if profile.AutoCollectEnabled && profile.HarvestElapsed(now) {
		msg := fmt.Sprintf("harvest duration of %d minutes reached, collecting", profile.HarvestMinutes)
		return e.stopFor(ctx, profile, TransitionAutoStop, msg, state, now)
	}
	return TransitionNone, "", nil
}

func (e Evaluator) stopFor(ctx context.Context, profile kami.AgentProfile, tr Transition, msg string, state ports.AgentState, now time.Time) (Transition, string, error) {
	harvestID, source, err := e.Resolver.Resolve(ctx, profile.AgentID)
	if err != nil {
		if errors.Is(err, ErrHarvestUnresolved) {
			e.tripBreaker(ctx, profile, tr)
		}
		return TransitionNone, "", fmt.Errorf("%s: %w", tr, err)
	}

	receipt, err := e.submitStop(ctx, &profile, harvestID, now)
	if err != nil {
		if receipt.TxHash == "" {
			return TransitionNone, "", fmt.Errorf("%s: %w", tr, err)
		}
		return tr, receipt.TxHash, fmt.Errorf("%s: %w", tr, err)
	}
	e.record(ctx, profile, string(tr), kami.StatusSuccess, msg, map[string]any{
		kami.MetaHarvestID: harvestID,
		"tx_hash":          receipt.TxHash,
		"vitality":         state.Vitality,
		"resolved_from":    string(source),
	})
	return tr, receipt.TxHash, nil
}

// tripBreaker turns automation off for a kami whose harvest cannot be found,
// so the next ticks do not keep failing the same way. Only the automation
// flag of the stored row changes.
func (e Evaluator) tripBreaker(ctx context.Context, profile kami.AgentProfile, tr Transition) {
	err := e.Lock.RunExclusive(ctx, profile.OperatorIdentity, func(ctx context.Context) error {
		return e.inTx(ctx, func(ctx context.Context) error {
			current, err := e.Profiles.Get(ctx, profile.AgentID)
			if err != nil {
				return err
			}
			current.DisableAutomation()
			if err := e.Profiles.SaveSettings(ctx, current); err != nil {
				return err
			}
			return e.Audit.Record(ctx, kami.AuditEvent{
				OperatorIdentity: current.OperatorIdentity,
				AgentID:          current.AgentID,
				Action:           kami.ActionAutomationDisabled,
				Status:           kami.StatusError,
				Message:          "could not resolve the running harvest id; automation disabled, stop the harvest manually and re-enable",
				Metadata:         map[string]any{"trigger": string(tr)},
			})
		})
	})
	if err != nil {
		e.Logger.Error().Err(err).Str("agent_id", profile.AgentID).Msg("disable automation")
	}
}

func (e Evaluator) evaluateResting(ctx context.Context, profile kami.AgentProfile, state ports.AgentState, now time.Time) (Transition, string, error) {
	if !profile.AutoRestartEnabled || !profile.RestElapsed(now) {
		return TransitionNone, "", nil
	}

	if err := e.checkLocation(ctx, profile, state, profile.TargetNodeIndex); err != nil {
		if errors.Is(err, ErrLocationMismatch) {
			e.record(ctx, profile, kami.ActionAutomationStopped, kami.StatusError, err.Error(), map[string]any{
				"target_node_index": profile.TargetNodeIndex,
				"kami_room":         state.Room,
			})
			return TransitionLocationBlocked, "", nil
		}
		return TransitionNone, "", err
	}

	receipt, err := e.submitStart(ctx, &profile, profile.TargetNodeIndex, now)
	if err != nil {
		if receipt.TxHash == "" {
			return TransitionNone, "", fmt.Errorf("%s: %w", TransitionAutoStart, err)
		}
		return TransitionAutoStart, receipt.TxHash, fmt.Errorf("%s: %w", TransitionAutoStart, err)
	}
	e.record(ctx, profile, kami.ActionAutoStart, kami.StatusSuccess,
		fmt.Sprintf("rest of %d minutes complete, harvesting on node %d", profile.RestMinutes, profile.TargetNodeIndex),
		map[string]any{
			kami.MetaHarvestID:  receipt.HarvestID,
			"tx_hash":           receipt.TxHash,
			"target_node_index": profile.TargetNodeIndex,
		})
	return TransitionAutoStart, receipt.TxHash, nil
}

// checkLocation enforces that the operator's account stands on node. The
// kami's own room only matters under AgentRoomStrict.
func (e Evaluator) checkLocation(ctx context.Context, profile kami.AgentProfile, state ports.AgentState, node int) error {
	accountID := state.AccountID
	if accountID == "" {
		id, err := e.Ledger.AccountOf(ctx, profile.OperatorIdentity)
		if err != nil {
			return fmt.Errorf("resolve account: %w", err)
		}
		accountID = id
	}
	account, err := e.Ledger.AccountState(ctx, accountID)
	if err != nil {
		return fmt.Errorf("read account state: %w", err)
	}
	if account.Room != node {
		return fmt.Errorf("%w: account in room %d, target node %d", ErrLocationMismatch, account.Room, node)
	}
	if state.Room != node {
		if e.RoomPolicy == AgentRoomStrict {
			return fmt.Errorf("%w: kami in room %d, target node %d", ErrLocationMismatch, state.Room, node)
		}
		e.Logger.Info().
			Str("agent_id", profile.AgentID).
			Int("kami_room", state.Room).
			Int("target_node_index", node).
			Msg("kami room differs from target node, starting anyway")
	}
	return nil
}

// submitStart signs and sends a start, then persists the harvesting state
// before the operator lock is released. A returned receipt with a tx hash
// means the ledger accepted the start even if err is non-nil.
func (e Evaluator) submitStart(ctx context.Context, profile *kami.AgentProfile, node int, now time.Time) (ports.StartReceipt, error) {
	var receipt ports.StartReceipt
	err := e.Lock.RunExclusive(ctx, profile.OperatorIdentity, func(ctx context.Context) error {
		err := e.Signer.With(ctx, profile.OperatorIdentity, func(ctx context.Context, cred ports.Credential) error {
			r, err := e.Ledger.StartHarvest(ctx, profile.AgentID, node, cred)
			if err != nil {
				return err
			}
			receipt = r
			return nil
		})
		if err != nil {
			return fmt.Errorf("start harvest on node %d: %w", node, err)
		}
		profile.MarkHarvesting(now)
		if err := e.Profiles.SaveState(ctx, *profile); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		return nil
	})
	return receipt, err
}

// submitStop is submitStart for a stop: the resting state is saved under the
// same lock hold as the ledger call.
func (e Evaluator) submitStop(ctx context.Context, profile *kami.AgentProfile, harvestID string, now time.Time) (ports.TxReceipt, error) {
	var receipt ports.TxReceipt
	err := e.Lock.RunExclusive(ctx, profile.OperatorIdentity, func(ctx context.Context) error {
		err := e.Signer.With(ctx, profile.OperatorIdentity, func(ctx context.Context, cred ports.Credential) error {
			r, err := e.Ledger.StopHarvest(ctx, harvestID, cred)
			if err != nil {
				return err
			}
			receipt = r
			return nil
		})
		if err != nil {
			return fmt.Errorf("stop harvest %s: %w", harvestID, err)
		}
		profile.MarkResting(now)
		if err := e.Profiles.SaveState(ctx, *profile); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		return nil
	})
	return receipt, err
}

func (e Evaluator) record(ctx context.Context, profile kami.AgentProfile, action string, status kami.AuditStatus, msg string, meta map[string]any) {
	if e.Audit == nil {
		return
	}
	err := e.Audit.Record(ctx, kami.AuditEvent{
		OperatorIdentity: profile.OperatorIdentity,
		AgentID:          profile.AgentID,
		Action:           action,
		Status:           status,
		Message:          msg,
		Metadata:         meta,
	})
	if err != nil {
		e.Logger.Error().Err(err).Str("agent_id", profile.AgentID).Str("action", action).Msg("record audit event")
	}
}

func (e Evaluator) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.TxManager == nil {
		return fn(ctx)
	}
	return e.TxManager.RunInTx(ctx, fn)
}

func (e Evaluator) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now()
}
