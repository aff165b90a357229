package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/pointledger/internal/models"
	"github.com/ruralpay/pointledger/internal/store"
)

var _ store.Store = (*Store)(nil)

const historySeqKey = "point_history:seq"

func pointKey(id int64) string {
	return fmt.Sprintf("point:%d", id)
}

func historyKey(accountID int64) string {
	return fmt.Sprintf("point_history:%d", accountID)
}

// historyRecord is the JSON shape stored in the per-account history list.
type historyRecord struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	Amount    int64  `json:"amount"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"` // unix millis
}

// Store keeps balances in a hash per account and history as a JSON list per account.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

func New(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// WithClock overrides the time source used for updated_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) SelectByID(ctx context.Context, id int64) (*models.AccountPoint, error) {
	fields, err := s.client.HGetAll(ctx, pointKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("pointledger/redis: select point %d: %w", id, err)
	}
	if len(fields) == 0 {
		return models.EmptyAccountPoint(id, s.now()), nil
	}

	point, err := strconv.ParseInt(fields["point"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pointledger/redis: parse point %d: %w", id, err)
	}
	updatedAt, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pointledger/redis: parse updated_at %d: %w", id, err)
	}

	return &models.AccountPoint{ID: id, Point: point, UpdatedAt: time.UnixMilli(updatedAt)}, nil
}

func (s *Store) InsertOrUpdate(ctx context.Context, id int64, point int64) (*models.AccountPoint, error) {
	return s.upsert(ctx, s.client, id, point)
}

func (s *Store) Insert(ctx context.Context, accountID, amount int64, txType models.TransactionType, at time.Time) (*models.PointHistory, error) {
	return s.appendHistory(ctx, s.client, accountID, amount, txType, at)
}

func (s *Store) SelectAllByAccountID(ctx context.Context, accountID int64) ([]models.PointHistory, error) {
	raw, err := s.client.LRange(ctx, historyKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("pointledger/redis: select histories for %d: %w", accountID, err)
	}

	histories := make([]models.PointHistory, 0, len(raw))
	for _, item := range raw {
		var rec historyRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("pointledger/redis: decode history: %w", err)
		}
		txType := models.TransactionType(rec.Type)
		if !txType.Valid() {
			return nil, fmt.Errorf("pointledger/redis: history %d: %w: %q", rec.ID, models.ErrUnknownTransaction, rec.Type)
		}
		histories = append(histories, models.PointHistory{
			ID:        rec.ID,
			AccountID: rec.AccountID,
			Amount:    rec.Amount,
			Type:      txType,
			CreatedAt: time.UnixMilli(rec.CreatedAt),
		})
	}
	return histories, nil
}

// RunInTx queues the writes made by fn into a MULTI/EXEC block. History ids are drawn
// before EXEC, so an aborted transaction leaves a gap in the sequence.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&redisTx{store: s, pipe: pipe})
	})
	if err != nil {
		return fmt.Errorf("pointledger/redis: tx: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) upsert(ctx context.Context, c redis.Cmdable, id int64, point int64) (*models.AccountPoint, error) {
	now := s.now()
	if err := c.HSet(ctx, pointKey(id), "point", point, "updated_at", now.UnixMilli()).Err(); err != nil {
		return nil, fmt.Errorf("pointledger/redis: upsert point %d: %w", id, err)
	}
	return &models.AccountPoint{ID: id, Point: point, UpdatedAt: now}, nil
}

func (s *Store) appendHistory(ctx context.Context, c redis.Cmdable, accountID, amount int64, txType models.TransactionType, at time.Time) (*models.PointHistory, error) {
	id, err := s.client.Incr(ctx, historySeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("pointledger/redis: next history id: %w", err)
	}

	data, err := json.Marshal(historyRecord{
		ID:        id,
		AccountID: accountID,
		Amount:    amount,
		Type:      string(txType),
		CreatedAt: at.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	if err := c.RPush(ctx, historyKey(accountID), string(data)).Err(); err != nil {
		return nil, fmt.Errorf("pointledger/redis: append history for %d: %w", accountID, err)
	}

	return &models.PointHistory{
		ID:        id,
		AccountID: accountID,
		Amount:    amount,
		Type:      txType,
		CreatedAt: time.UnixMilli(at.UnixMilli()),
	}, nil
}

// redisTx reads through the client and queues writes on the MULTI pipeline.
type redisTx struct {
	store *Store
	pipe  redis.Pipeliner
}

func (tx *redisTx) SelectByID(ctx context.Context, id int64) (*models.AccountPoint, error) {
	return tx.store.SelectByID(ctx, id)
}

func (tx *redisTx) InsertOrUpdate(ctx context.Context, id int64, point int64) (*models.AccountPoint, error) {
	return tx.store.upsert(ctx, tx.pipe, id, point)
}

func (tx *redisTx) Insert(ctx context.Context, accountID, amount int64, txType models.TransactionType, at time.Time) (*models.PointHistory, error) {
	return tx.store.appendHistory(ctx, tx.pipe, accountID, amount, txType, at)
}

func (tx *redisTx) SelectAllByAccountID(ctx context.Context, accountID int64) ([]models.PointHistory, error) {
	return tx.store.SelectAllByAccountID(ctx, accountID)
}
