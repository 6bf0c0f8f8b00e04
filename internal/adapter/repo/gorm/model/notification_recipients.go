package model

import (
	"time"
)

const TableNameNotificationRecipient = "notification_recipients"

// NotificationRecipient mapped from table <notification_recipients>
type NotificationRecipient struct {
	OperatorIdentity string    `gorm:"column:operator_identity;primaryKey" json:"operator_identity"`
	ChatID           string    `gorm:"column:chat_id;not null" json:"chat_id"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName NotificationRecipient's table name
func (*NotificationRecipient) TableName() string {
	return TableNameNotificationRecipient
}
