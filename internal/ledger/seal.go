package ledger

import (
	"context"
	"fmt"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
)

const (
	// DefaultDifficulty is the number of leading zero hex digits required.
	DefaultDifficulty = 2
	// MaxDifficulty keeps expected work below 16^8 hash evaluations.
	MaxDifficulty = 8

	ctxCheckInterval = 1024
)

// ExpectedWork is the expected number of hash evaluations at difficulty.
func ExpectedWork(difficulty int) uint64 {
	if difficulty <= 0 {
		return 1
	}
	return uint64(1) << (4 * uint(difficulty))
}

// Seal increments b.Nonce until the hash meets difficulty. It gives up with
// ErrSealTimeout after maxIterations attempts (0 means no cap) or when ctx is
// done.
func Seal(ctx context.Context, b protocol.Block, difficulty int, maxIterations uint64) (protocol.Block, error) {
	b.Hash = protocol.ComputeHash(b)
	var tries uint64
	for !protocol.HasWorkPrefix(b.Hash, difficulty) {
		tries++
		if maxIterations > 0 && tries >= maxIterations {
			return protocol.Block{}, fmt.Errorf("%w: no nonce after %d attempts at difficulty %d", ErrSealTimeout, tries, difficulty)
		}
		if tries%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return protocol.Block{}, fmt.Errorf("%w: %v", ErrSealTimeout, err)
			}
		}
		b.Nonce++
		b.Hash = protocol.ComputeHash(b)
	}
	return b, nil
}
