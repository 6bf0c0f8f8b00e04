package ports

import (
	"context"
	"errors"

	"autokami/internal/domain/kami"
)

var (
	ErrTxFailed    = errors.New("ledger transaction failed")
	ErrTimeout     = errors.New("ledger call timed out")
	ErrUnavailable = errors.New("ledger unavailable")
)

type AgentState struct {
	Activity  kami.Activity
	Vitality  int
	Room      int
	AccountID string
}

type AccountState struct {
	Room    int
	Stamina int
}

type HarvestEntity struct {
	ID     string
	Active bool
}

type StartReceipt struct {
	TxHash    string
	HarvestID string
}

type TxReceipt struct {
	TxHash string
}

// Ledger is the gateway to the external chain. Submit calls block until the
// transaction settles.
type Ledger interface {
	AgentState(ctx context.Context, agentID string) (AgentState, error)
	AccountState(ctx context.Context, accountID string) (AccountState, error)
	AccountOf(ctx context.Context, operator string) (string, error)
	Inventory(ctx context.Context, accountID string) (map[int]int, error)
	// HarvestsByTarget lists harvest entities whose target is the agent.
	HarvestsByTarget(ctx context.Context, agentID string) ([]HarvestEntity, error)

	StartHarvest(ctx context.Context, agentID string, nodeIndex int, cred Credential) (StartReceipt, error)
	StopHarvest(ctx context.Context, harvestID string, cred Credential) (TxReceipt, error)
	Craft(ctx context.Context, recipeID, amount int, cred Credential) (TxReceipt, error)
}
