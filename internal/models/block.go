package models

import (
	"database/sql"
	"time"
)

// Block represents a block seen by the pool along with the running pool totals
// as of that block.
type Block struct {
	ID          int64         `gorm:"primaryKey;autoIncrement:false;column:id"`
	Stamp       int64         `gorm:"not null;index:blocks_stamp_idx;column:stamp"`
	Won         bool          `gorm:"not null;column:won"`
	TotalShares float64       `gorm:"not null;column:total_shares"`
	Nonce       string        `gorm:"type:varchar(32);not null;column:nonce"`
	Reward      float64       `gorm:"not null;column:reward"`
	Address     string        `gorm:"type:text;not null;column:address"`
	Difficulty  sql.NullInt64 `gorm:"column:difficulty"`
	TotalWork   sql.NullInt64 `gorm:"column:total_work"`
	NamedWork   sql.NullInt64 `gorm:"column:named_work"`
	NamedShares float64       `gorm:"not null;column:named_shares"`

	// Running totals, non-decreasing by id
	PoolBalance   float64 `gorm:"not null;column:pool_balance"`
	PoolShmeckles float64 `gorm:"not null;column:pool_shmeckles"`
}

// TableName specifies the table name for Block
func (Block) TableName() string {
	return "blocks"
}

// Time returns the block timestamp.
func (b Block) Time() time.Time {
	return time.Unix(b.Stamp, 0).UTC()
}
