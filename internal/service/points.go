package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Arrogantx/hyperian/internal/chain"
	"github.com/Arrogantx/hyperian/internal/config"
	"github.com/Arrogantx/hyperian/internal/models"
	"github.com/Arrogantx/hyperian/pkg/errors"
	"github.com/Arrogantx/hyperian/pkg/logger"
)

// LedgerStore is the persistence seam the engine drives. Implementations
// must make ApplyClaim atomic with respect to the cooldown guard.
type LedgerStore interface {
	Get(ctx context.Context, address string) (*models.Wallet, error)
	EnsureWallet(ctx context.Context, address string) error
	ApplyClaim(ctx context.Context, address string, reward int64, multiplier float64, totalHeld int64, now time.Time, window time.Duration) (bool, error)
}

// ClaimDecision is the engine's verdict on one claim request.
type ClaimDecision struct {
	Granted     bool
	Points      int64
	Multiplier  float64
	Holdings    map[string]int64
	TotalHeld   int64
	Entry       *models.Wallet
	NextClaimAt time.Time
}

// Engine converts on-chain holdings into ledger updates under the cooldown
// and tier rules.
type Engine struct {
	reader      chain.HoldingsReader
	ledger      LedgerStore
	collections []config.CollectionConfig
	tiers       []config.TierConfig
	window      time.Duration
	now         func() time.Time
}

func NewEngine(
	reader chain.HoldingsReader,
	ledger LedgerStore,
	collections []config.CollectionConfig,
	pointsCfg *config.PointsConfig,
) (*Engine, error) {
	if len(collections) == 0 {
		return nil, fmt.Errorf("at least one tracked collection is required")
	}
	for _, c := range collections {
		if c.Weight < 0 {
			return nil, fmt.Errorf("collection %s has negative weight", c.Name)
		}
	}

	tiers := make([]config.TierConfig, len(pointsCfg.Tiers))
	copy(tiers, pointsCfg.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinHeld < tiers[j].MinHeld })
	if len(tiers) == 0 || tiers[0].MinHeld != 0 {
		return nil, fmt.Errorf("tier table must start at 0 held")
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].MinHeld == tiers[i-1].MinHeld {
			return nil, fmt.Errorf("duplicate tier threshold %d", tiers[i].MinHeld)
		}
	}

	window := pointsCfg.CooldownWindow()
	if window <= 0 {
		return nil, fmt.Errorf("cooldown window must be positive")
	}

	return &Engine{
		reader:      reader,
		ledger:      ledger,
		collections: collections,
		tiers:       tiers,
		window:      window,
		now:         time.Now,
	}, nil
}

// CooldownWindow returns the configured minimum time between claims.
func (e *Engine) CooldownWindow() time.Duration {
	return e.window
}

// TierMultiplier returns the multiplier for a total holdings count. The
// tiers are a sorted step function starting at 0, so exactly one applies.
func (e *Engine) TierMultiplier(totalHeld int64) float64 {
	multiplier := e.tiers[0].Multiplier
	for _, tier := range e.tiers {
		if totalHeld >= int64(tier.MinHeld) {
			multiplier = tier.Multiplier
		}
	}
	return multiplier
}

// Claim runs the full claim protocol for a wallet: cooldown precheck,
// fresh holdings read, reward computation, atomic ledger apply.
func (e *Engine) Claim(ctx context.Context, wallet string) (*ClaimDecision, error) {
	address, err := chain.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}

	now := e.now()

	// Cooldown precheck from the ledger before touching the chain. The
	// authoritative check is the conditional update below; this one only
	// saves the RPC round-trips for wallets that are clearly cooling.
	entry, err := e.ledger.Get(ctx, address)
	if err != nil {
		return nil, errors.New(errors.ErrPersistenceFailed, "failed to read ledger entry", err)
	}
	if next, cooling := e.nextClaimAt(entry, now); cooling {
		return &ClaimDecision{Granted: false, Entry: entry, NextClaimAt: next}, nil
	}

	holdings, err := e.reader.GetHoldings(ctx, address)
	if err != nil {
		return nil, errors.New(errors.ErrChainReadFailed, "failed to read holdings", err)
	}

	var basePoints float64
	var totalHeld int64
	for _, collection := range e.collections {
		count := holdings[collection.Name]
		basePoints += float64(count) * collection.Weight
		totalHeld += count
	}

	multiplier := e.TierMultiplier(totalHeld)
	reward := int64(math.Floor(basePoints * multiplier))

	if err := e.ledger.EnsureWallet(ctx, address); err != nil {
		return nil, errors.New(errors.ErrPersistenceFailed, "failed to create ledger entry", err)
	}

	applied, err := e.ledger.ApplyClaim(ctx, address, reward, multiplier, totalHeld, now, e.window)
	if err != nil {
		return nil, errors.New(errors.ErrPersistenceFailed, "failed to apply claim", err)
	}
	if !applied {
		// A concurrent claim won the race between our precheck and the
		// conditional update. Report cooldown from the fresh row.
		fresh, err := e.ledger.Get(ctx, address)
		if err != nil {
			return nil, errors.New(errors.ErrPersistenceFailed, "failed to re-read ledger entry", err)
		}
		next, _ := e.nextClaimAt(fresh, now)
		return &ClaimDecision{Granted: false, Entry: fresh, NextClaimAt: next}, nil
	}

	updated, err := e.ledger.Get(ctx, address)
	if err != nil {
		return nil, errors.New(errors.ErrPersistenceFailed, "failed to read updated ledger entry", err)
	}

	logger.WithFields(map[string]interface{}{
		"wallet":     address,
		"reward":     reward,
		"multiplier": multiplier,
		"total_held": totalHeld,
	}).Info("claim granted")

	return &ClaimDecision{
		Granted:     true,
		Points:      reward,
		Multiplier:  multiplier,
		Holdings:    holdings,
		TotalHeld:   totalHeld,
		Entry:       updated,
		NextClaimAt: now.Add(e.window),
	}, nil
}

// GetEntry returns the ledger entry for a wallet, nil if it never claimed.
func (e *Engine) GetEntry(ctx context.Context, wallet string) (*models.Wallet, error) {
	address, err := chain.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}
	entry, err := e.ledger.Get(ctx, address)
	if err != nil {
		return nil, errors.New(errors.ErrPersistenceFailed, "failed to read ledger entry", err)
	}
	return entry, nil
}

func (e *Engine) nextClaimAt(entry *models.Wallet, now time.Time) (time.Time, bool) {
	if entry == nil || entry.LastClaimedAt == nil {
		return time.Time{}, false
	}
	next := entry.LastClaimedAt.Add(e.window)
	if now.Before(next) {
		return next, true
	}
	return time.Time{}, false
}
