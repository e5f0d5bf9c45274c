package ledger

import "github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"

// RedactedPayload replaces private payloads the viewer did not author.
const RedactedPayload = "🔒 [This secret is private]"

// Project returns a copy of chain as seen by viewer. Private blocks whose
// author is not exactly viewer have their payload redacted; every other field,
// hash included, is left intact so the view stays auditable. An empty viewer
// authors nothing.
func Project(chain protocol.Chain, viewer string) protocol.Chain {
	view := make(protocol.Chain, len(chain))
	for i, b := range chain {
		if !b.Public && (viewer == "" || b.Author != viewer) {
			b.Payload = RedactedPayload
		}
		view[i] = b
	}
	return view
}
