package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
)

func buildChain(t *testing.T, difficulty int, n int) protocol.Chain {
	t.Helper()
	chain := protocol.Chain{protocol.Genesis()}
	for i := 1; i <= n; i++ {
		head, _ := chain.Head()
		author := "alice"
		if i%2 == 0 {
			author = "bob"
		}
		b := protocol.NewBlock(head.Index+1, "2025-01-01T00:00:00Z", "entry", author, i%2 == 1, head.Hash)
		sealed, err := Seal(context.Background(), b, difficulty, 0)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		chain = append(chain, sealed)
	}
	return chain
}

func TestValidateAcceptsSealedChain(t *testing.T) {
	chain := buildChain(t, 2, 4)
	if err := Validate(chain, 2); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !Valid(chain, 2) {
		t.Fatalf("expected Valid to agree with Validate")
	}
	if !Valid(protocol.Chain{protocol.Genesis()}, 2) {
		t.Fatalf("genesis-only chain must be valid")
	}
}

func TestValidateDetectsTampering(t *testing.T) {
	cases := map[string]func(c protocol.Chain){
		"payload":       func(c protocol.Chain) { c[2].Payload = "rewritten" },
		"author":        func(c protocol.Chain) { c[2].Author = "mallory" },
		"visibility":    func(c protocol.Chain) { c[2].Public = !c[2].Public },
		"nonce":         func(c protocol.Chain) { c[2].Nonce++ },
		"index":         func(c protocol.Chain) { c[2].Index = 7 },
		"previous_hash": func(c protocol.Chain) { c[2].PreviousHash = c[0].Hash },
		"hash":          func(c protocol.Chain) { c[3].Hash = "00" + c[3].Hash[2:63] + "x" },
		"genesis":       func(c protocol.Chain) { c[0].Payload = "hijacked" },
	}
	for name, tamper := range cases {
		chain := buildChain(t, 2, 3)
		tamper(chain)
		err := Validate(chain, 2)
		if !errors.Is(err, ErrIntegrityViolation) {
			t.Fatalf("%s: expected ErrIntegrityViolation, got %v", name, err)
		}
		if _, ok := FailedIndex(err); !ok {
			t.Fatalf("%s: expected IntegrityError with an index", name)
		}
	}
}

func TestValidateRejectsResealedBlockThatBreaksLink(t *testing.T) {
	chain := buildChain(t, 1, 3)
	// Rewriting block 1 and re-sealing it still orphans block 2.
	chain[1].Payload = "rewritten"
	resealed, err := Seal(context.Background(), chain[1], 1, 0)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	chain[1] = resealed
	idx, ok := FailedIndex(Validate(chain, 1))
	if !ok || idx != 2 {
		t.Fatalf("expected failure at block 2, got %d ok=%v", idx, ok)
	}
}

func TestValidateEnforcesDifficulty(t *testing.T) {
	chain := buildChain(t, 0, 2)
	lacking := false
	for _, b := range chain[1:] {
		if !protocol.HasWorkPrefix(b.Hash, 3) {
			lacking = true
		}
	}
	if lacking && Valid(chain, 3) {
		t.Fatalf("expected difficulty 3 audit to reject unsealed blocks")
	}
	if !Valid(chain, 0) {
		t.Fatalf("expected difficulty 0 audit to accept chain")
	}
}

func TestValidateEmptyChain(t *testing.T) {
	if err := Validate(nil, 2); !errors.Is(err, ErrIntegrityViolation) {
		t.Fatalf("expected empty chain to be rejected, got %v", err)
	}
}

// The timestamp is recorded but not sealed, so rewriting it leaves the chain
// valid. Sealing it needs a v2 digest.
func TestValidateDoesNotCoverTimestamp(t *testing.T) {
	chain := buildChain(t, 1, 3)
	chain[2].Timestamp = "1999-12-31T23:59:59Z"
	if err := Validate(chain, 1); err != nil {
		t.Fatalf("timestamp edits are expected to pass validation, got %v", err)
	}
	chain[0].Timestamp = "1999-12-31T23:59:59Z"
	if !errors.Is(Validate(chain, 1), ErrIntegrityViolation) {
		t.Fatalf("genesis is compared whole, including its timestamp")
	}
}
