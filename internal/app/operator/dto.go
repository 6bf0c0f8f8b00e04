package operator

import "autokami/internal/domain/kami"

// AutomationRequest carries a partial update; nil fields keep their stored
// value.
type AutomationRequest struct {
	AgentID            string
	Operator           string
	HarvestMinutes     *int
	RestMinutes        *int
	MinHealthThreshold *int
	AutoHarvestEnabled *bool
	AutoCollectEnabled *bool
	AutoRestartEnabled *bool
	TargetNodeIndex    *int
}

type CraftingRequest struct {
	Operator        string
	RecipeID        int
	AmountPerRun    int
	IntervalMinutes int
	IsEnabled       bool
}

type AuditRequest struct {
	Operator string
	AgentID  string
	Limit    int
}

type AuditResponse struct {
	Events []kami.AuditEvent `json:"events"`
}
