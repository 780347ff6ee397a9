package chain

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Arrogantx/hyperian/internal/config"
	"github.com/Arrogantx/hyperian/pkg/errors"
)

const (
	hyperiansContract = "0x4414c32982b4cf348d4fdc7b86be2ef9b1ae1160"
	genesisContract   = "0xb0f82655f249fc6561a94eb370d41bd24a861a9d"
	readerWallet      = "0x0000000000000000000000000000000000000123"
)

// fakeCaller answers eth_calls from canned per-contract balances and token
// id lists.
type fakeCaller struct {
	mu       sync.Mutex
	balances map[string]int64
	tokens   map[string][]int64
	failFor  map[string]error
	calls    int
}

func encodeWord(v int64) string {
	return fmt.Sprintf("0x%064x", v)
}

func (f *fakeCaller) EthCall(ctx context.Context, contract, data string) (string, error) {
	f.mu.Lock()
	f.calls++
	err, failing := f.failFor[contract]
	f.mu.Unlock()

	if failing {
		return "", err
	}

	if data == EncodeBalanceOf(readerWallet) {
		return encodeWord(f.balances[contract]), nil
	}
	for i, id := range f.tokens[contract] {
		if data == EncodeTokenOfOwnerByIndex(readerWallet, int64(i)) {
			return encodeWord(id), nil
		}
	}
	return "", errors.New(errors.ErrMalformedResponse, "unexpected calldata", nil)
}

func readerCollections() []config.CollectionConfig {
	return []config.CollectionConfig{
		{Name: "hyperians", Address: hyperiansContract, Weight: 5},
		{Name: "genesis", Address: genesisContract, Weight: 3},
	}
}

func TestGetHoldings(t *testing.T) {
	caller := &fakeCaller{
		balances: map[string]int64{hyperiansContract: 7, genesisContract: 2},
	}
	reader := NewReader(caller, readerCollections())

	holdings, err := reader.GetHoldings(context.Background(), readerWallet)
	if err != nil {
		t.Fatalf("GetHoldings failed: %v", err)
	}

	if holdings["hyperians"] != 7 || holdings["genesis"] != 2 {
		t.Errorf("holdings = %v; want hyperians:7 genesis:2", holdings)
	}
	if caller.calls != 2 {
		t.Errorf("eth_call count = %d; want 2", caller.calls)
	}
}

func TestGetHoldingsFailsWhole(t *testing.T) {
	caller := &fakeCaller{
		balances: map[string]int64{hyperiansContract: 7},
		failFor: map[string]error{
			genesisContract: errors.New(errors.ErrUpstreamUnavailable, "node down", nil),
		},
	}
	reader := NewReader(caller, readerCollections())

	_, err := reader.GetHoldings(context.Background(), readerWallet)
	if err == nil {
		t.Fatal("one failed contract must fail the whole aggregate")
	}
	if !errors.HasCode(err, errors.ErrUpstreamUnavailable) {
		t.Errorf("code = %q; want UPSTREAM_UNAVAILABLE", errors.CodeOf(err))
	}
}

func TestGetTokenIDs(t *testing.T) {
	caller := &fakeCaller{
		balances: map[string]int64{hyperiansContract: 3},
		tokens:   map[string][]int64{hyperiansContract: {11, 42, 7}},
	}
	reader := NewReader(caller, readerCollections())

	ids, err := reader.GetTokenIDs(context.Background(), readerWallet, "hyperians")
	if err != nil {
		t.Fatalf("GetTokenIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != 11 || ids[1] != 42 || ids[2] != 7 {
		t.Errorf("ids = %v; want [11 42 7]", ids)
	}
}

func TestGetTokenIDsUnknownCollection(t *testing.T) {
	reader := NewReader(&fakeCaller{}, readerCollections())

	_, err := reader.GetTokenIDs(context.Background(), readerWallet, "doodles")
	if !errors.HasCode(err, errors.ErrInvalidInput) {
		t.Errorf("code = %q; want INVALID_INPUT", errors.CodeOf(err))
	}
}

func TestCachedReaderMemoizes(t *testing.T) {
	caller := &fakeCaller{
		balances: map[string]int64{hyperiansContract: 1, genesisContract: 1},
	}
	cached := NewCachedReader(NewReader(caller, readerCollections()), 16, time.Minute)
	ctx := context.Background()

	if _, err := cached.GetHoldings(ctx, readerWallet); err != nil {
		t.Fatalf("first GetHoldings failed: %v", err)
	}
	first := caller.calls

	if _, err := cached.GetHoldings(ctx, readerWallet); err != nil {
		t.Fatalf("second GetHoldings failed: %v", err)
	}
	if caller.calls != first {
		t.Errorf("cached read hit the chain: %d calls after %d", caller.calls, first)
	}
}

func TestCachedReaderDoesNotCacheErrors(t *testing.T) {
	caller := &fakeCaller{
		failFor: map[string]error{
			hyperiansContract: errors.New(errors.ErrUpstreamUnavailable, "node down", nil),
		},
		balances: map[string]int64{genesisContract: 1},
	}
	cached := NewCachedReader(NewReader(caller, readerCollections()), 16, time.Minute)
	ctx := context.Background()

	if _, err := cached.GetHoldings(ctx, readerWallet); err == nil {
		t.Fatal("expected error from failing contract")
	}

	caller.mu.Lock()
	delete(caller.failFor, hyperiansContract)
	caller.mu.Unlock()

	holdings, err := cached.GetHoldings(ctx, readerWallet)
	if err != nil {
		t.Fatalf("retry after recovery failed: %v", err)
	}
	if holdings["genesis"] != 1 {
		t.Errorf("holdings = %v; want genesis:1", holdings)
	}
}
