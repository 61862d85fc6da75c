package models

// WorkProof records one address's contribution to one block. The store keeps
// at most one row per (block, address).
type WorkProof struct {
	BlockID   int64   `gorm:"primaryKey;autoIncrement:false;column:block_id"`
	AddressID int64   `gorm:"primaryKey;autoIncrement:false;column:address_id"`
	Shares    float64 `gorm:"not null;column:shares"`
	WorkCount int64   `gorm:"not null;column:workcount"`
	Shmeckles float64 `gorm:"default:0;column:shmeckles"`

	// Relationships
	Block   *Block   `gorm:"foreignKey:BlockID;references:ID"`
	Address *Address `gorm:"foreignKey:AddressID;references:ID"`
}

// TableName specifies the table name for WorkProof
func (WorkProof) TableName() string {
	return "workproof"
}
