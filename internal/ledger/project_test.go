package ledger

import (
	"testing"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
)

func privacyChain() protocol.Chain {
	g := protocol.Genesis()
	alice := protocol.NewBlock(1, "2025-01-01T00:00:00Z", "alice says hi", "alice", true, g.Hash)
	bob := protocol.NewBlock(2, "2025-01-01T00:00:01Z", "bob's secret", "bob", false, alice.Hash)
	return protocol.Chain{g, alice, bob}
}

func TestProjectRedactsOthersPrivateEntries(t *testing.T) {
	chain := privacyChain()

	view := Project(chain, "alice")
	if view[0].Payload != protocol.GenesisPayload || view[1].Payload != "alice says hi" {
		t.Fatalf("alice should see genesis and her own entry: %+v", view)
	}
	if view[2].Payload != RedactedPayload {
		t.Fatalf("alice must not see bob's private entry, got %q", view[2].Payload)
	}

	view = Project(chain, "bob")
	for i := range chain {
		if view[i].Payload != chain[i].Payload {
			t.Fatalf("bob should see every payload, block %d got %q", i, view[i].Payload)
		}
	}

	view = Project(chain, "")
	if view[1].Payload != "alice says hi" || view[2].Payload != RedactedPayload {
		t.Fatalf("anonymous viewer should only lose bob's block: %+v", view)
	}
}

func TestProjectKeepsAuditFields(t *testing.T) {
	chain := privacyChain()
	view := Project(chain, "")
	for i := range chain {
		got, want := view[i], chain[i]
		if got.Hash != want.Hash || got.PreviousHash != want.PreviousHash || got.Index != want.Index || got.Nonce != want.Nonce || got.Author != want.Author || got.Public != want.Public || got.Timestamp != want.Timestamp {
			t.Fatalf("block %d audit fields changed: got %+v want %+v", i, got, want)
		}
	}
}

func TestProjectIsPure(t *testing.T) {
	chain := privacyChain()
	first := Project(chain, "mallory")
	second := Project(chain, "mallory")
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("projection not deterministic at block %d", i)
		}
	}
	if chain[2].Payload != "bob's secret" {
		t.Fatalf("Project mutated its input")
	}
}

func TestProjectIsCaseSensitive(t *testing.T) {
	view := Project(privacyChain(), "Bob")
	if view[2].Payload != RedactedPayload {
		t.Fatalf("identity comparison must be exact")
	}
}
