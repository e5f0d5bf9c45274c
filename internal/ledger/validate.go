package ledger

import (
	"errors"
	"fmt"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
)

// Validate audits chain against the fixed genesis, hash recomputation,
// predecessor linkage, index continuity and the proof-of-work condition.
// It returns an *IntegrityError for the first failing block.
func Validate(chain protocol.Chain, difficulty int) error {
	if len(chain) == 0 {
		return &IntegrityError{Index: 0, Reason: "chain is empty"}
	}
	if chain[0] != protocol.Genesis() {
		return &IntegrityError{Index: 0, Reason: "genesis block does not match the fixed genesis"}
	}
	for i := 1; i < len(chain); i++ {
		prev, cur := chain[i-1], chain[i]
		switch {
		case cur.Index != prev.Index+1:
			return &IntegrityError{Index: int64(i), Reason: fmt.Sprintf("index %d does not follow %d", cur.Index, prev.Index)}
		case cur.PreviousHash != prev.Hash:
			return &IntegrityError{Index: cur.Index, Reason: "previous_hash does not match predecessor hash"}
		case protocol.ComputeHash(cur) != cur.Hash:
			return &IntegrityError{Index: cur.Index, Reason: "stored hash does not match recomputed digest"}
		case !protocol.HasWorkPrefix(cur.Hash, difficulty):
			return &IntegrityError{Index: cur.Index, Reason: fmt.Sprintf("hash lacks %d leading zero digits", difficulty)}
		}
	}
	return nil
}

// Valid reports whether Validate accepts chain.
func Valid(chain protocol.Chain, difficulty int) bool {
	return Validate(chain, difficulty) == nil
}

// FailedIndex extracts the failing block index from a Validate error.
func FailedIndex(err error) (int64, bool) {
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		return 0, false
	}
	return ie.Index, true
}
