package model

import (
	"time"

	"gorm.io/datatypes"
)

const TableNameAuditEvent = "audit_events"

// AuditEvent mapped from table <audit_events>
type AuditEvent struct {
	ID               string         `gorm:"column:id;primaryKey" json:"id"`
	OperatorIdentity string         `gorm:"column:operator_identity;not null" json:"operator_identity"`
	AgentID          string         `gorm:"column:agent_id;not null" json:"agent_id"`
	Action           string         `gorm:"column:action;not null" json:"action"`
	Status           string         `gorm:"column:status;not null" json:"status"`
	Message          string         `gorm:"column:message;not null" json:"message"`
	Metadata         datatypes.JSON `gorm:"column:metadata;type:jsonb;not null" json:"metadata"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName AuditEvent's table name
func (*AuditEvent) TableName() string {
	return TableNameAuditEvent
}
