package storage

import (
	"context"
	"errors"
	"time"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
)

var ErrAccountExists = errors.New("account already exists")

// ChainFormat tags the persisted chain encoding.
const ChainFormat = "blogchain/chain/v1"

// ChainStore persists the whole chain. WriteChain must replace the stored
// chain atomically: readers see either the previous or the new chain.
type ChainStore interface {
	ReadChain(ctx context.Context) (protocol.Chain, bool, error)
	WriteChain(ctx context.Context, chain protocol.Chain) error
	Close()
}

type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccountStore holds credential records. It never sees plaintext passwords.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct Account) error
	GetAccount(ctx context.Context, username string) (Account, bool, error)
	Close()
}
