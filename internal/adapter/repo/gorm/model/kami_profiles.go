package model

import (
	"time"
)

const TableNameKamiProfile = "kami_profiles"

// KamiProfile mapped from table <kami_profiles>
type KamiProfile struct {
	AgentID             string     `gorm:"column:agent_id;primaryKey" json:"agent_id"`
	OperatorIdentity    string     `gorm:"column:operator_identity;not null" json:"operator_identity"`
	Activity            string     `gorm:"column:activity;not null;default:RESTING" json:"activity"`
	HarvestDuration     int32      `gorm:"column:harvest_duration;not null;default:60" json:"harvest_duration"`
	RestDuration        int32      `gorm:"column:rest_duration;not null;default:30" json:"rest_duration"`
	MinHealthThreshold  int32      `gorm:"column:min_health_threshold;not null;default:20" json:"min_health_threshold"`
	AutoHarvestEnabled  bool       `gorm:"column:auto_harvest_enabled;not null" json:"auto_harvest_enabled"`
	AutoCollectEnabled  bool       `gorm:"column:auto_collect_enabled;not null" json:"auto_collect_enabled"`
	AutoRestartEnabled  bool       `gorm:"column:auto_restart_enabled;not null" json:"auto_restart_enabled"`
	TargetNodeIndex     int32      `gorm:"column:target_node_index;not null" json:"target_node_index"`
	LastHarvestStart    *time.Time `gorm:"column:last_harvest_start" json:"last_harvest_start"`
	LastCollect         *time.Time `gorm:"column:last_collect" json:"last_collect"`
	TotalHarvests       int64      `gorm:"column:total_harvests;not null" json:"total_harvests"`
	TotalRests          int64      `gorm:"column:total_rests;not null" json:"total_rests"`
	AutomationStartedAt *time.Time `gorm:"column:automation_started_at" json:"automation_started_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName KamiProfile's table name
func (*KamiProfile) TableName() string {
	return TableNameKamiProfile
}
