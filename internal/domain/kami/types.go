package kami

import "time"

type Activity string

const (
	ActivityResting    Activity = "RESTING"
	ActivityHarvesting Activity = "HARVESTING"
)

func (a Activity) Valid() bool {
	return a == ActivityResting || a == ActivityHarvesting
}

type AgentProfile struct {
	AgentID             string     `json:"agent_id"`
	OperatorIdentity    string     `json:"operator_identity"`
	Activity            Activity   `json:"activity"`
	HarvestMinutes      int        `json:"harvest_duration"`
	RestMinutes         int        `json:"rest_duration"`
	MinHealthThreshold  int        `json:"min_health_threshold"`
	AutoHarvestEnabled  bool       `json:"auto_harvest_enabled"`
	AutoCollectEnabled  bool       `json:"auto_collect_enabled"`
	AutoRestartEnabled  bool       `json:"auto_restart_enabled"`
	TargetNodeIndex     int        `json:"target_node_index"`
	LastHarvestStart    *time.Time `json:"last_harvest_start,omitempty"`
	LastCollect         *time.Time `json:"last_collect,omitempty"`
	TotalHarvests       int64      `json:"total_harvests"`
	TotalRests          int64      `json:"total_rests"`
	AutomationStartedAt *time.Time `json:"automation_started_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type CraftingSetting struct {
	OperatorIdentity string     `json:"operator_identity"`
	RecipeID         int        `json:"recipe_id"`
	AmountPerRun     int        `json:"amount_per_run"`
	IntervalMinutes  int        `json:"interval_minutes"`
	IsEnabled        bool       `json:"is_enabled"`
	LastRunAt        *time.Time `json:"last_run_at,omitempty"`
}

type AuditStatus string

const (
	StatusInfo    AuditStatus = "info"
	StatusSuccess AuditStatus = "success"
	StatusWarning AuditStatus = "warning"
	StatusError   AuditStatus = "error"
)

const (
	ActionStateSync          = "state_sync"
	ActionLowHealthStop      = "low_health_stop"
	ActionAutoStop           = "auto_stop"
	ActionAutoStart          = "auto_start"
	ActionAutomationStopped  = "automation_stopped"
	ActionAutomationDisabled = "automation_disabled"
	ActionAutomationError    = "automation_error"
	ActionManualStart        = "manual_start_harvest"
	ActionManualStop         = "manual_stop_harvest"
	ActionAutoCraft          = "auto_craft"
	ActionAutoCraftSkip      = "auto_craft_skip"
	ActionAutoCraftFail      = "auto_craft_fail"
)

// MetaHarvestID is the audit metadata key carrying the resource handle of a
// started harvest.
const MetaHarvestID = "harvest_id"

type AuditEvent struct {
	ID               string         `json:"id"`
	OperatorIdentity string         `json:"operator_identity"`
	AgentID          string         `json:"agent_id,omitempty"`
	Action           string         `json:"action"`
	Status           AuditStatus    `json:"status"`
	Message          string         `json:"message"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// HarvestID returns the resource handle recorded on a start event, if any.
func (e AuditEvent) HarvestID() (string, bool) {
	if e.Metadata == nil {
		return "", false
	}
	switch v := e.Metadata[MetaHarvestID].(type) {
	case string:
		if v != "" {
			return v, true
		}
	case float64:
		return formatFloatID(v), true
	}
	return "", false
}
