package model

import (
	"time"
)

const TableNameCraftingSetting = "crafting_settings"

// CraftingSetting mapped from table <crafting_settings>
type CraftingSetting struct {
	OperatorIdentity string     `gorm:"column:operator_identity;primaryKey" json:"operator_identity"`
	RecipeID         int32      `gorm:"column:recipe_id;not null" json:"recipe_id"`
	AmountPerRun     int32      `gorm:"column:amount_per_run;not null;default:1" json:"amount_per_run"`
	IntervalMinutes  int32      `gorm:"column:interval_minutes;not null;default:60" json:"interval_minutes"`
	IsEnabled        bool       `gorm:"column:is_enabled;not null" json:"is_enabled"`
	LastRunAt        *time.Time `gorm:"column:last_run_at" json:"last_run_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName CraftingSetting's table name
func (*CraftingSetting) TableName() string {
	return TableNameCraftingSetting
}
