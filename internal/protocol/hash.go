package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// blockHashDomain prefixes every block digest. Bump the version when the
// hashed field set or its encoding changes; old chains stop verifying otherwise.
const blockHashDomain = "blogchain:block:v1:"

// CanonicalJSON encodes v with struct field order preserved and HTML escaping
// disabled, so payloads containing <, > or & hash the same way everywhere.
func CanonicalJSON(v any) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(strings.TrimSuffix(sb.String(), "\n")), nil
}

func SHA256Hex(in []byte) string {
	h := sha256.Sum256(in)
	return hex.EncodeToString(h[:])
}

type blockHashShape struct {
	Index        int64  `json:"index"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Author       string `json:"author"`
	Public       bool   `json:"public"`
	Nonce        uint64 `json:"nonce"`
}

// ComputeHash returns the v1 digest of the sealed fields of b. The stored
// Hash and the Timestamp do not participate.
func ComputeHash(b Block) string {
	raw, err := CanonicalJSON(blockHashShape{
		Index:        b.Index,
		PreviousHash: b.PreviousHash,
		Payload:      b.Payload,
		Author:       b.Author,
		Public:       b.Public,
		Nonce:        b.Nonce,
	})
	if err != nil {
		// Strings, integers and booleans always encode.
		panic("protocol: encode block hash input: " + err.Error())
	}
	return SHA256Hex(append([]byte(blockHashDomain), raw...))
}

// HasWorkPrefix reports whether the first difficulty hex digits of hash are '0'.
func HasWorkPrefix(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}
