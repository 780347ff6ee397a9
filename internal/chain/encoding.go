package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/Arrogantx/hyperian/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// 4-byte function selectors, derived the same way the contracts derive them.
var (
	balanceOfSelector           = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	tokenOfOwnerByIndexSelector = crypto.Keccak256([]byte("tokenOfOwnerByIndex(address,uint256)"))[:4]
)

// NormalizeAddress validates a hex account address and returns the canonical
// lowercase form used for all ledger keys and contract calls.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", errors.New(errors.ErrInvalidInput,
			fmt.Sprintf("invalid wallet address: %q", address), nil)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// EncodeBalanceOf builds the calldata for balanceOf(owner).
func EncodeBalanceOf(owner string) string {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	return "0x" + hex.EncodeToString(data)
}

// EncodeTokenOfOwnerByIndex builds the calldata for
// tokenOfOwnerByIndex(owner, index).
func EncodeTokenOfOwnerByIndex(owner string, index int64) string {
	data := make([]byte, 0, 4+64)
	data = append(data, tokenOfOwnerByIndexSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(index).Bytes(), 32)...)
	return "0x" + hex.EncodeToString(data)
}

// DecodeUint decodes an eth_call result word into a non-negative integer.
func DecodeUint(result string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(result), "0x")
	if trimmed == "" {
		return 0, errors.New(errors.ErrMalformedResponse, "empty result", nil)
	}

	value, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return 0, errors.New(errors.ErrMalformedResponse,
			fmt.Sprintf("result is not valid hex: %q", result), nil)
	}
	if !value.IsInt64() {
		return 0, errors.New(errors.ErrMalformedResponse,
			fmt.Sprintf("result out of range: %q", result), nil)
	}
	return value.Int64(), nil
}
