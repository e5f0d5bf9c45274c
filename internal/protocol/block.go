package protocol

import "time"

const (
	// GenesisAuthor owns block 0.
	GenesisAuthor = "System"
	// GenesisPreviousHash is the sentinel predecessor of block 0.
	GenesisPreviousHash = "0"
	GenesisPayload      = "Welcome to the Secret Blogchain"
	GenesisTimestamp    = "2024-01-01T00:00:00Z"

	// TimestampLayout is the canonical, sortable block timestamp format.
	TimestampLayout = time.RFC3339Nano
)

// Block is one ledger entry. Once sealed and appended it is never mutated.
type Block struct {
	Index        int64  `json:"index"`
	Timestamp    string `json:"timestamp"`
	Payload      string `json:"payload"`
	Author       string `json:"author"`
	Public       bool   `json:"public"`
	PreviousHash string `json:"previous_hash"`
	Nonce        uint64 `json:"nonce"`
	Hash         string `json:"hash"`
}

// NewBlock builds an unsealed block with nonce 0 and its initial hash.
// Callers must reject an empty author or payload before calling it.
func NewBlock(index int64, timestamp, payload, author string, public bool, previousHash string) Block {
	b := Block{
		Index:        index,
		Timestamp:    timestamp,
		Payload:      payload,
		Author:       author,
		Public:       public,
		PreviousHash: previousHash,
	}
	b.Hash = ComputeHash(b)
	return b
}

// Genesis returns the fixed first block of every chain.
func Genesis() Block {
	return NewBlock(0, GenesisTimestamp, GenesisPayload, GenesisAuthor, true, GenesisPreviousHash)
}

// FormatTimestamp renders t in the canonical block timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Chain is the ordered block sequence, genesis first.
type Chain []Block

// Head returns the last block and false when the chain is empty.
func (c Chain) Head() (Block, bool) {
	if len(c) == 0 {
		return Block{}, false
	}
	return c[len(c)-1], true
}

// Clone returns an independent copy of c.
func (c Chain) Clone() Chain {
	if c == nil {
		return nil
	}
	out := make(Chain, len(c))
	copy(out, c)
	return out
}
