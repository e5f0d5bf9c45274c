package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
)

func (s *Store) CreateAccount(ctx context.Context, acct storage.Account) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO accounts (username, password_hash, created_at)
VALUES ($1, $2, $3)
`, acct.Username, acct.PasswordHash, acct.CreatedAt.UTC())
	if isUniqueViolationFor(err, "username") {
		return storage.ErrAccountExists
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, username string) (storage.Account, bool, error) {
	var out storage.Account
	err := s.pool.QueryRow(ctx, `
SELECT username, password_hash, created_at
FROM accounts
WHERE username = $1
`, username).Scan(&out.Username, &out.PasswordHash, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return out, true, nil
}
