package models

import (
	"time"
)

// Wallet is the per-address rewards ledger row. Addresses are stored in
// canonical lowercase hex form; the unique index makes them the lookup key.
type Wallet struct {
	ID                 uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Address            string     `gorm:"uniqueIndex:uk_address;size:42;not null" json:"address"`
	Points             int64      `gorm:"not null;default:0" json:"points"`
	WeeklyPoints       int64      `gorm:"not null;default:0" json:"weekly_points"`
	TotalClaimed       int64      `gorm:"not null;default:0" json:"total_claimed"`
	LastClaimedAt      *time.Time `json:"last_claimed_at"`
	TotalNftsHeld      int64      `gorm:"not null;default:0" json:"total_nfts_held"`
	ActivityMultiplier float64    `gorm:"type:decimal(4,2);not null;default:1" json:"activity_multiplier"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}
