package points

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dukerupert/famquest/internal/model"
	"github.com/dukerupert/famquest/internal/store"
	"github.com/dukerupert/famquest/internal/websocket"
)

// Store is the persistence surface the engine uses inside one unit of work.
type Store interface {
	ListActiveMemberIDs(ctx context.Context, familyID int64) ([]int64, error)
	SumByMembers(ctx context.Context, memberIDs []int64) (map[int64]int, error)
	Append(ctx context.Context, memberID int64, delta int, source string, meta map[string]any) (*model.LedgerEntry, error)
	InsertRedemption(ctx context.Context, rec model.RedeemedReward) (*model.RedeemedReward, error)
}

// UnitOfWork runs a read-decide-write sequence against a Store. When Atomic
// reports true, a failed fn leaves no writes behind; otherwise the engine
// compensates for partial writes itself.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Store) error) error
	Atomic() bool
}

// Notifier receives change notifications after successful writes.
type Notifier interface {
	Broadcast(msg websocket.Message)
}

type sqlStores struct {
	ledger      *store.LedgerStore
	redemptions *store.RedemptionStore
	members     *store.FamilyMemberStore
}

func (s sqlStores) ListActiveMemberIDs(ctx context.Context, familyID int64) ([]int64, error) {
	return s.members.ListActiveMemberIDs(ctx, familyID)
}

func (s sqlStores) SumByMembers(ctx context.Context, memberIDs []int64) (map[int64]int, error) {
	return s.ledger.SumByMembers(ctx, memberIDs)
}

func (s sqlStores) Append(ctx context.Context, memberID int64, delta int, source string, meta map[string]any) (*model.LedgerEntry, error) {
	return s.ledger.Append(ctx, memberID, delta, source, meta)
}

func (s sqlStores) InsertRedemption(ctx context.Context, rec model.RedeemedReward) (*model.RedeemedReward, error) {
	return s.redemptions.Insert(ctx, rec)
}

// SQLUnitOfWork runs each unit inside one SQLite transaction. A unit that
// fails because another writer holds the database is retried from the start.
type SQLUnitOfWork struct {
	db         *sql.DB
	maxRetries uint64
	baseDelay  time.Duration
}

func NewSQLUnitOfWork(db *sql.DB, maxRetries uint64, baseDelay time.Duration) *SQLUnitOfWork {
	if baseDelay <= 0 {
		baseDelay = 25 * time.Millisecond
	}
	return &SQLUnitOfWork{db: db, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (u *SQLUnitOfWork) Atomic() bool { return true }

func (u *SQLUnitOfWork) Do(ctx context.Context, fn func(Store) error) error {
	backoff := retry.WithMaxRetries(u.maxRetries, retry.NewExponential(u.baseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := store.WithTx(ctx, u.db, func(tx *store.Tx) error {
			return fn(sqlStores{ledger: tx.Ledger, redemptions: tx.Redemptions, members: tx.Members})
		})
		if isBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// DirectUnitOfWork runs units against a Store with no transaction. Partial
// writes are undone by compensation. The server uses SQLUnitOfWork; this one
// serves stores that cannot hold a transaction across the unit.
type DirectUnitOfWork struct {
	Store Store
}

func (u DirectUnitOfWork) Atomic() bool { return false }

func (u DirectUnitOfWork) Do(_ context.Context, fn func(Store) error) error {
	return fn(u.Store)
}

// NewDirectUnitOfWork wires the plain sqlite stores without a transaction.
func NewDirectUnitOfWork(db *sql.DB) DirectUnitOfWork {
	return DirectUnitOfWork{Store: sqlStores{
		ledger:      store.NewLedgerStore(db),
		redemptions: store.NewRedemptionStore(db),
		members:     store.NewFamilyMemberStore(db),
	}}
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
