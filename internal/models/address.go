package models

import (
	"database/sql"
)

// Address represents a payout address known to the pool
type Address struct {
	ID          int64         `gorm:"primaryKey;autoIncrement;column:id"`
	Address     string        `gorm:"type:varchar(56);not null;uniqueIndex:addresses_ux1;column:address"`
	TotalReward float64       `gorm:"default:0;column:total_reward"`
	SentReward  float64       `gorm:"default:0;column:sent_reward"`
	PaidUpto    sql.NullInt64 `gorm:"column:paid_upto"`
	TotalWork   sql.NullInt64 `gorm:"column:total_work"`
}

// TableName specifies the table name for Address
func (Address) TableName() string {
	return "addresses"
}
