package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
)

var chainColumns = []string{
	"block_index",
	"block_timestamp",
	"payload",
	"author",
	"is_public",
	"previous_hash",
	"nonce",
	"block_hash",
}

func (s *Store) ReadChain(ctx context.Context) (protocol.Chain, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var format string
	err = tx.QueryRow(ctx, `SELECT format FROM chain_meta WHERE id = 1`).Scan(&format)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if format != storage.ChainFormat {
		return nil, false, fmt.Errorf("unsupported chain format %q", format)
	}

	rows, err := tx.Query(ctx, `
SELECT block_index, block_timestamp, payload, author, is_public, previous_hash, nonce, block_hash
FROM chain_blocks
ORDER BY block_index ASC
`)
	if err != nil {
		return nil, false, err
	}
	chain, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (protocol.Block, error) {
		var b protocol.Block
		var nonce int64
		if err := row.Scan(&b.Index, &b.Timestamp, &b.Payload, &b.Author, &b.Public, &b.PreviousHash, &nonce, &b.Hash); err != nil {
			return b, err
		}
		b.Nonce = uint64(nonce)
		return b, nil
	})
	if err != nil {
		return nil, false, err
	}
	if len(chain) == 0 {
		return nil, false, errors.New("chain_meta present but chain_blocks is empty")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return protocol.Chain(chain), true, nil
}

// WriteChain replaces the stored chain inside one serializable transaction,
// so an interrupted write rolls back to the previous chain.
func (s *Store) WriteChain(ctx context.Context, chain protocol.Chain) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chain_blocks`); err != nil {
		return fmt.Errorf("clear chain blocks: %w", err)
	}
	rows := make([][]any, 0, len(chain))
	for _, b := range chain {
		rows = append(rows, []any{b.Index, b.Timestamp, b.Payload, b.Author, b.Public, b.PreviousHash, int64(b.Nonce), b.Hash})
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"chain_blocks"}, chainColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy chain blocks: %w", err)
	}
	if copied != int64(len(chain)) {
		return fmt.Errorf("copied %d of %d chain blocks", copied, len(chain))
	}
	_, err = tx.Exec(ctx, `
INSERT INTO chain_meta (id, format, difficulty, updated_at)
VALUES (1, $1, $2, NOW())
ON CONFLICT (id) DO UPDATE SET
  format = EXCLUDED.format,
  difficulty = EXCLUDED.difficulty,
  updated_at = EXCLUDED.updated_at
`, storage.ChainFormat, s.difficulty)
	if err != nil {
		return fmt.Errorf("update chain meta: %w", err)
	}
	return tx.Commit(ctx)
}
