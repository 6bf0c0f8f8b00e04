package model

import (
	"time"
)

const TableNameOperatorCredential = "operator_credentials"

// OperatorCredential mapped from table <operator_credentials>
type OperatorCredential struct {
	OperatorIdentity string    `gorm:"column:operator_identity;primaryKey" json:"operator_identity"`
	Ciphertext       []byte    `gorm:"column:ciphertext;not null" json:"-"`
	Salt             []byte    `gorm:"column:salt;not null" json:"-"`
	Nonce            []byte    `gorm:"column:nonce;not null" json:"-"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName OperatorCredential's table name
func (*OperatorCredential) TableName() string {
	return TableNameOperatorCredential
}
