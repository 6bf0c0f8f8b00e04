package bridge

import (
	"fmt"
	"strconv"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type agentStateResponse struct {
	Activity  string `json:"activity"`
	Vitality  int    `json:"vitality"`
	Room      int    `json:"room"`
	AccountID string `json:"account_id"`
}

func (r agentStateResponse) toPort() ports.AgentState {
	return ports.AgentState{
		Activity:  kami.Activity(r.Activity),
		Vitality:  r.Vitality,
		Room:      r.Room,
		AccountID: r.AccountID,
	}
}

type accountStateResponse struct {
	Room    int `json:"room"`
	Stamina int `json:"stamina"`
}

type accountOfResponse struct {
	AccountID string `json:"account_id"`
}

// JSON object keys are strings, so item ids arrive as "7".
type inventoryResponse struct {
	Items map[string]int `json:"items"`
}

func (r inventoryResponse) toPort() (map[int]int, error) {
	items := make(map[int]int, len(r.Items))
	for k, v := range r.Items {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("inventory item id %q: %w", k, err)
		}
		items[id] = v
	}
	return items, nil
}

type harvestsResponse struct {
	Harvests []struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	} `json:"harvests"`
}

type submitResponse struct {
	TxHash    string `json:"tx_hash"`
	HarvestID string `json:"harvest_id,omitempty"`
}
