package store

import (
	"context"
	"time"

	"github.com/ruralpay/pointledger/internal/models"
)

// PointStore holds the current balance of each account.
type PointStore interface {
	// SelectByID never reports a missing account; unknown ids come back as a zero balance.
	SelectByID(ctx context.Context, id int64) (*models.AccountPoint, error)
	InsertOrUpdate(ctx context.Context, id int64, point int64) (*models.AccountPoint, error)
}

// HistoryStore is the append-only log of successful charges and uses.
type HistoryStore interface {
	Insert(ctx context.Context, accountID, amount int64, txType models.TransactionType, at time.Time) (*models.PointHistory, error)
	// SelectAllByAccountID returns records in insertion order, or an empty slice.
	SelectAllByAccountID(ctx context.Context, accountID int64) ([]models.PointHistory, error)
}

// Tx is the view of a store inside RunInTx.
type Tx interface {
	PointStore
	HistoryStore
}

// Store is the unified storage interface used by the point service.
type Store interface {
	PointStore
	HistoryStore

	// RunInTx runs fn so that every write made through tx is applied together or not at all.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}
