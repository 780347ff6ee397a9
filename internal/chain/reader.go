package chain

import (
	"context"
	"fmt"

	"github.com/Arrogantx/hyperian/internal/config"
	"github.com/Arrogantx/hyperian/pkg/errors"
	"github.com/Arrogantx/hyperian/pkg/logger"
)

// HoldingsReader is the read-only view of on-chain NFT ownership consumed
// by the points engine and the holdings endpoints.
type HoldingsReader interface {
	// GetHoldings returns the wallet's held-token count per tracked
	// collection, keyed by collection name. A failure for any collection
	// fails the whole read; counts are never silently defaulted to zero.
	GetHoldings(ctx context.Context, wallet string) (map[string]int64, error)
	// GetTokenIDs enumerates the wallet's token ids in one collection.
	GetTokenIDs(ctx context.Context, wallet, collection string) ([]int64, error)
}

type ethCaller interface {
	EthCall(ctx context.Context, contract, data string) (string, error)
}

// Reader aggregates balanceOf reads across the configured collections.
type Reader struct {
	caller      ethCaller
	collections []config.CollectionConfig
}

func NewReader(caller ethCaller, collections []config.CollectionConfig) *Reader {
	return &Reader{caller: caller, collections: collections}
}

func (r *Reader) Collections() []config.CollectionConfig {
	return r.collections
}

type balanceResult struct {
	name  string
	count int64
	err   error
}

// GetHoldings issues one balanceOf call per collection, concurrently; the
// calls are independent and unordered.
func (r *Reader) GetHoldings(ctx context.Context, wallet string) (map[string]int64, error) {
	results := make(chan balanceResult, len(r.collections))

	for _, collection := range r.collections {
		go func(c config.CollectionConfig) {
			count, err := r.balanceOf(ctx, wallet, c.Address)
			results <- balanceResult{name: c.Name, count: count, err: err}
		}(collection)
	}

	holdings := make(map[string]int64, len(r.collections))
	var firstErr error
	for range r.collections {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		holdings[res.name] = res.count
	}

	if firstErr != nil {
		return nil, firstErr
	}

	logger.WithFields(map[string]interface{}{
		"wallet":   wallet,
		"holdings": holdings,
	}).Debug("fetched holdings")

	return holdings, nil
}

// GetTokenIDs walks tokenOfOwnerByIndex up to the wallet's balance. The
// index calls are sequential; enumerable contracts reorder tokens on
// transfer, so there is no point parallelizing a snapshot that is already
// best-effort.
func (r *Reader) GetTokenIDs(ctx context.Context, wallet, collection string) ([]int64, error) {
	var contract string
	for _, c := range r.collections {
		if c.Name == collection {
			contract = c.Address
			break
		}
	}
	if contract == "" {
		return nil, errors.New(errors.ErrInvalidInput,
			fmt.Sprintf("unknown collection: %q", collection), nil)
	}

	balance, err := r.balanceOf(ctx, wallet, contract)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, balance)
	for i := int64(0); i < balance; i++ {
		result, err := r.caller.EthCall(ctx, contract, EncodeTokenOfOwnerByIndex(wallet, i))
		if err != nil {
			return nil, err
		}
		id, err := DecodeUint(result)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (r *Reader) balanceOf(ctx context.Context, wallet, contract string) (int64, error) {
	result, err := r.caller.EthCall(ctx, contract, EncodeBalanceOf(wallet))
	if err != nil {
		return 0, err
	}
	return DecodeUint(result)
}
