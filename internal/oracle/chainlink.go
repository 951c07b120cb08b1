// Package oracle provides price-feed adapters for the settlement core.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// ContractCaller is the slice of ethclient.Client the aggregator feed needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// latestRoundDataSelector is the 4-byte selector of latestRoundData().
var latestRoundDataSelector = ethcrypto.Keccak256([]byte("latestRoundData()"))[:4]

// AggregatorFeed reads a Chainlink-compatible price aggregator over
// JSON-RPC. The answer is reported in the aggregator's own fixed-point
// units; the core treats it as an opaque scaled integer.
type AggregatorFeed struct {
	caller ContractCaller
	addr   common.Address
}

// NewAggregatorFeed creates a feed reading the aggregator at addr.
func NewAggregatorFeed(caller ContractCaller, addr common.Address) *AggregatorFeed {
	return &AggregatorFeed{caller: caller, addr: addr}
}

// Latest calls latestRoundData() and returns (answer, updatedAt).
func (f *AggregatorFeed) Latest(ctx context.Context) (int64, time.Time, error) {
	out, err := f.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &f.addr,
		Data: latestRoundDataSelector,
	}, nil)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("oracle: latestRoundData: %w", err)
	}
	return parseLatestRoundData(out)
}

// parseLatestRoundData decodes the ABI return of latestRoundData():
// (uint80 roundId, int256 answer, uint256 startedAt, uint256 updatedAt,
// uint80 answeredInRound), five 32-byte words.
func parseLatestRoundData(out []byte) (int64, time.Time, error) {
	if len(out) < 5*32 {
		return 0, time.Time{}, fmt.Errorf("oracle: %w: short return data (%d bytes)", domain.ErrInvalidPrice, len(out))
	}

	answer := twosComplement(out[32:64])
	if !answer.IsInt64() {
		return 0, time.Time{}, fmt.Errorf("oracle: %w: answer out of range", domain.ErrInvalidPrice)
	}

	updated := new(big.Int).SetBytes(out[96:128])
	if !updated.IsInt64() {
		return 0, time.Time{}, fmt.Errorf("oracle: %w: updatedAt out of range", domain.ErrInvalidPrice)
	}

	return answer.Int64(), time.Unix(updated.Int64(), 0), nil
}

// twosComplement interprets a 32-byte word as a signed int256.
func twosComplement(word []byte) *big.Int {
	v := new(big.Int).SetBytes(word)
	if word[0]&0x80 != 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		v.Sub(v, max)
	}
	return v
}

var _ domain.PriceFeed = (*AggregatorFeed)(nil)
