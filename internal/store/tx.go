package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx groups the stores that take part in one database transaction.
type Tx struct {
	Ledger      *LedgerStore
	Redemptions *RedemptionStore
	Members     *FamilyMemberStore
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(*Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{
		Ledger:      NewLedgerStore(tx),
		Redemptions: NewRedemptionStore(tx),
		Members:     NewFamilyMemberStore(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
