package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

type ManualStartRequest struct {
	AgentID   string
	Operator  string
	NodeIndex int
}

type ManualStopRequest struct {
	AgentID  string
	Operator string
}

type ManualResult struct {
	Profile   kami.AgentProfile `json:"profile"`
	TxHash    string            `json:"tx_hash"`
	HarvestID string            `json:"harvest_id,omitempty"`
}

// Manual performs operator-initiated starts and stops outside the tick. It
// shares the evaluator's lock, resolver and profile updates so manual and
// automatic actions serialize on the same operator.
type Manual struct {
	Engine Evaluator
}

func (m Manual) Start(ctx context.Context, req ManualStartRequest) (ManualResult, error) {
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.Operator = strings.TrimSpace(req.Operator)
	if req.AgentID == "" || req.Operator == "" || req.NodeIndex < 0 {
		return ManualResult{}, ErrInvalidRequest
	}
	e := m.Engine
	now := e.now()

	profile, state, err := m.load(ctx, req.AgentID, req.Operator)
	if err != nil {
		return ManualResult{}, err
	}
	if profile.Activity == kami.ActivityHarvesting {
		return ManualResult{Profile: profile}, ErrAlreadyHarvesting
	}

	if err := e.checkLocation(ctx, profile, state, req.NodeIndex); err != nil {
		if errors.Is(err, ErrLocationMismatch) {
			e.record(ctx, profile, kami.ActionManualStart, kami.StatusWarning, err.Error(), map[string]any{
				"target_node_index": req.NodeIndex,
				"kami_room":         state.Room,
			})
		}
		return ManualResult{Profile: profile}, err
	}

	receipt, err := e.submitStart(ctx, &profile, req.NodeIndex, now)
	if err != nil {
		if receipt.TxHash != "" {
			return ManualResult{Profile: profile, TxHash: receipt.TxHash, HarvestID: receipt.HarvestID}, err
		}
		e.record(ctx, profile, kami.ActionManualStart, kami.StatusError, err.Error(), map[string]any{"target_node_index": req.NodeIndex})
		return ManualResult{Profile: profile}, err
	}
	e.record(ctx, profile, kami.ActionManualStart, kami.StatusSuccess,
		fmt.Sprintf("manual harvest started on node %d", req.NodeIndex),
		map[string]any{
			kami.MetaHarvestID:  receipt.HarvestID,
			"tx_hash":           receipt.TxHash,
			"target_node_index": req.NodeIndex,
		})
	return ManualResult{Profile: profile, TxHash: receipt.TxHash, HarvestID: receipt.HarvestID}, nil
}

func (m Manual) Stop(ctx context.Context, req ManualStopRequest) (ManualResult, error) {
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.Operator = strings.TrimSpace(req.Operator)
	if req.AgentID == "" || req.Operator == "" {
		return ManualResult{}, ErrInvalidRequest
	}
	e := m.Engine
	now := e.now()

	profile, _, err := m.load(ctx, req.AgentID, req.Operator)
	if err != nil {
		return ManualResult{}, err
	}
	if profile.Activity != kami.ActivityHarvesting {
		return ManualResult{Profile: profile}, ErrNotHarvesting
	}

	harvestID, source, err := e.Resolver.Resolve(ctx, profile.AgentID)
	if err != nil {
		e.record(ctx, profile, kami.ActionManualStop, kami.StatusError, err.Error(), nil)
		return ManualResult{Profile: profile}, err
	}
	receipt, err := e.submitStop(ctx, &profile, harvestID, now)
	if err != nil {
		if receipt.TxHash != "" {
			return ManualResult{Profile: profile, TxHash: receipt.TxHash, HarvestID: harvestID}, err
		}
		e.record(ctx, profile, kami.ActionManualStop, kami.StatusError, err.Error(), map[string]any{kami.MetaHarvestID: harvestID})
		return ManualResult{Profile: profile, HarvestID: harvestID}, err
	}
	e.record(ctx, profile, kami.ActionManualStop, kami.StatusSuccess, "manual harvest stopped", map[string]any{
		kami.MetaHarvestID: harvestID,
		"tx_hash":          receipt.TxHash,
		"resolved_from":    string(source),
	})
	return ManualResult{Profile: profile, TxHash: receipt.TxHash, HarvestID: harvestID}, nil
}

// load fetches or lazily creates the profile and reconciles it with the
// ledger before a manual action is judged.
func (m Manual) load(ctx context.Context, agentID, operator string) (kami.AgentProfile, ports.AgentState, error) {
	e := m.Engine
	profile, err := e.Profiles.GetOrCreate(ctx, agentID, operator)
	if err != nil {
		return kami.AgentProfile{}, ports.AgentState{}, fmt.Errorf("load profile: %w", err)
	}
	if !strings.EqualFold(profile.OperatorIdentity, operator) {
		return profile, ports.AgentState{}, ErrOperatorMismatch
	}
	state, err := e.Ledger.AgentState(ctx, agentID)
	if err != nil {
		return profile, ports.AgentState{}, fmt.Errorf("read kami state: %w", err)
	}
	profile, _, err = e.reconcile(ctx, profile, state, e.now())
	if err != nil {
		return profile, state, err
	}
	return profile, state, nil
}
