package memory

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ruralpay/pointledger/internal/models"
	"github.com/ruralpay/pointledger/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	points    map[int64]models.AccountPoint
	histories map[int64][]models.PointHistory

	historySeq atomic.Int64

	now      func() time.Time
	throttle time.Duration
}

type Option func(*Store)

// WithClock overrides the time source used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithThrottle delays every call by a random duration up to max, simulating a remote table.
func WithThrottle(max time.Duration) Option {
	return func(s *Store) {
		s.throttle = max
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		points:    make(map[int64]models.AccountPoint),
		histories: make(map[int64][]models.PointHistory),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) SelectByID(_ context.Context, id int64) (*models.AccountPoint, error) {
	s.sleep()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.points[id]; ok {
		return &p, nil
	}
	return models.EmptyAccountPoint(id, s.now()), nil
}

func (s *Store) InsertOrUpdate(_ context.Context, id int64, point int64) (*models.AccountPoint, error) {
	s.sleep()

	p := models.AccountPoint{ID: id, Point: point, UpdatedAt: s.now()}

	s.mu.Lock()
	s.points[id] = p
	s.mu.Unlock()

	return &p, nil
}

func (s *Store) Insert(_ context.Context, accountID, amount int64, txType models.TransactionType, at time.Time) (*models.PointHistory, error) {
	s.sleep()

	h := s.newHistory(accountID, amount, txType, at)

	s.mu.Lock()
	s.histories[accountID] = append(s.histories[accountID], h)
	s.mu.Unlock()

	return &h, nil
}

func (s *Store) SelectAllByAccountID(_ context.Context, accountID int64) ([]models.PointHistory, error) {
	s.sleep()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.PointHistory, len(s.histories[accountID]))
	copy(result, s.histories[accountID])
	return result, nil
}

// RunInTx buffers the writes made by fn and applies them under one write lock once fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx := &memoryTx{store: s, points: make(map[int64]models.AccountPoint)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range tx.histories {
		s.histories[h.AccountID] = append(s.histories[h.AccountID], h)
	}
	for id, p := range tx.points {
		s.points[id] = p
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) newHistory(accountID, amount int64, txType models.TransactionType, at time.Time) models.PointHistory {
	return models.PointHistory{
		ID:        s.historySeq.Add(1),
		AccountID: accountID,
		Amount:    amount,
		Type:      txType,
		CreatedAt: at,
	}
}

func (s *Store) sleep() {
	if s.throttle <= 0 {
		return
	}
	time.Sleep(rand.N(s.throttle))
}

type memoryTx struct {
	store     *Store
	points    map[int64]models.AccountPoint
	histories []models.PointHistory
}

func (tx *memoryTx) SelectByID(ctx context.Context, id int64) (*models.AccountPoint, error) {
	if p, ok := tx.points[id]; ok {
		return &p, nil
	}
	return tx.store.SelectByID(ctx, id)
}

func (tx *memoryTx) InsertOrUpdate(_ context.Context, id int64, point int64) (*models.AccountPoint, error) {
	tx.store.sleep()

	p := models.AccountPoint{ID: id, Point: point, UpdatedAt: tx.store.now()}
	tx.points[id] = p
	return &p, nil
}

func (tx *memoryTx) Insert(_ context.Context, accountID, amount int64, txType models.TransactionType, at time.Time) (*models.PointHistory, error) {
	tx.store.sleep()

	h := tx.store.newHistory(accountID, amount, txType, at)
	tx.histories = append(tx.histories, h)
	return &h, nil
}

func (tx *memoryTx) SelectAllByAccountID(ctx context.Context, accountID int64) ([]models.PointHistory, error) {
	committed, err := tx.store.SelectAllByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, h := range tx.histories {
		if h.AccountID == accountID {
			committed = append(committed, h)
		}
	}
	return committed, nil
}
