package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ruralpay/pointledger/internal/models"
	"github.com/ruralpay/pointledger/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store on PostgreSQL through database/sql.
type Store struct {
	queries
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{
		queries: queries{q: db, now: time.Now},
		db:      db,
	}
}

// WithClock overrides the time source used for updated_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pointledger/postgres: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{q: tx, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pointledger/postgres: commit tx: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type queries struct {
	q   querier
	now func() time.Time
}

func (s *queries) SelectByID(ctx context.Context, id int64) (*models.AccountPoint, error) {
	var p models.AccountPoint
	err := s.q.QueryRowContext(ctx, `
		SELECT id, point, updated_at
		FROM account_points
		WHERE id = $1`, id).Scan(&p.ID, &p.Point, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EmptyAccountPoint(id, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("pointledger/postgres: select point %d: %w", id, err)
	}
	return &p, nil
}

func (s *queries) InsertOrUpdate(ctx context.Context, id int64, point int64) (*models.AccountPoint, error) {
	var p models.AccountPoint
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO account_points (id, point, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET point = EXCLUDED.point, updated_at = EXCLUDED.updated_at
		RETURNING id, point, updated_at`,
		id, point, s.now()).Scan(&p.ID, &p.Point, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("pointledger/postgres: upsert point %d: %w", id, err)
	}
	return &p, nil
}

func (s *queries) Insert(ctx context.Context, accountID, amount int64, txType models.TransactionType, at time.Time) (*models.PointHistory, error) {
	h := models.PointHistory{
		AccountID: accountID,
		Amount:    amount,
		Type:      txType,
		CreatedAt: at,
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO point_histories (account_id, amount, type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		accountID, amount, string(txType), at).Scan(&h.ID)
	if err != nil {
		return nil, fmt.Errorf("pointledger/postgres: insert history for %d: %w", accountID, err)
	}
	return &h, nil
}

func (s *queries) SelectAllByAccountID(ctx context.Context, accountID int64) ([]models.PointHistory, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, account_id, amount, type, created_at
		FROM point_histories
		WHERE account_id = $1
		ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("pointledger/postgres: select histories for %d: %w", accountID, err)
	}
	defer rows.Close()

	histories := make([]models.PointHistory, 0)
	for rows.Next() {
		var h models.PointHistory
		var txType string
		if err := rows.Scan(&h.ID, &h.AccountID, &h.Amount, &txType, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("pointledger/postgres: scan history: %w", err)
		}
		h.Type = models.TransactionType(txType)
		histories = append(histories, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pointledger/postgres: iterate histories: %w", err)
	}
	return histories, nil
}
