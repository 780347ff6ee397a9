package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Arrogantx/hyperian/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Get returns the ledger entry for a canonical address, or nil if the
// wallet has never claimed.
func (r *LedgerRepository) Get(ctx context.Context, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		First(&wallet).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// EnsureWallet creates a zeroed ledger row for the address if none exists.
// The insert is conflict-safe so concurrent first claims both proceed to
// the conditional update.
func (r *LedgerRepository) EnsureWallet(ctx context.Context, address string) error {
	wallet := &models.Wallet{
		Address:            address,
		ActivityMultiplier: 1,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		Create(wallet).Error
}

// ApplyClaim performs the claim's ledger mutation as a single conditional
// UPDATE. The cooldown guard is evaluated by the database, so two racing
// claims for the same wallet can never both apply: whichever runs second
// sees the fresh last_claimed_at and matches zero rows.
func (r *LedgerRepository) ApplyClaim(
	ctx context.Context,
	address string,
	reward int64,
	multiplier float64,
	totalHeld int64,
	now time.Time,
	window time.Duration,
) (bool, error) {
	eligibleBefore := now.Add(-window)

	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("address = ? AND (last_claimed_at IS NULL OR last_claimed_at <= ?)", address, eligibleBefore).
		Updates(map[string]interface{}{
			"points":              gorm.Expr("points + ?", reward),
			"weekly_points":       gorm.Expr("weekly_points + ?", reward),
			"total_claimed":       gorm.Expr("total_claimed + ?", reward),
			"last_claimed_at":     now,
			"total_nfts_held":     totalHeld,
			"activity_multiplier": multiplier,
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SpendPoints atomically deducts from a wallet's available balance, failing
// closed when the balance is insufficient.
func (r *LedgerRepository) SpendPoints(ctx context.Context, address string, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("address = ? AND points >= ?", address, amount).
		Update("points", gorm.Expr("points - ?", amount))

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ResetWeeklyPoints zeroes every wallet's weekly accrual. Run by the weekly
// scheduler at the cycle boundary.
func (r *LedgerRepository) ResetWeeklyPoints(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("weekly_points <> 0").
		Update("weekly_points", 0)
	return result.RowsAffected, result.Error
}

// ListTop returns the highest-balance wallets for the leaderboard view.
func (r *LedgerRepository) ListTop(ctx context.Context, limit int) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Order("points DESC").
		Limit(limit).
		Find(&wallets).Error
	return wallets, err
}

// Count returns the number of wallets that have ever claimed.
func (r *LedgerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Count(&count).Error
	return count, err
}
