package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ruralpay/pointledger/internal/locks"
	"github.com/ruralpay/pointledger/internal/metrics"
	"github.com/ruralpay/pointledger/internal/models"
	"github.com/ruralpay/pointledger/internal/store"
)

// AuditLogger receives the outcome of every charge and use.
type AuditLogger interface {
	LogMutation(accountID int64, txType models.TransactionType, amount, point int64)
	LogRejected(accountID int64, txType models.TransactionType, amount, point int64, reason error)
	LogError(accountID int64, txType models.TransactionType, amount int64, err error)
}

type PointServiceOption func(*PointService)

func WithAuditLogger(a AuditLogger) PointServiceOption {
	return func(s *PointService) { s.audit = a }
}

func WithMetrics(c *metrics.Collector) PointServiceOption {
	return func(s *PointService) { s.metrics = c }
}

func WithClock(now func() time.Time) PointServiceOption {
	return func(s *PointService) { s.now = now }
}

// PointService applies charges and uses to account balances. Mutations of one account are
// serialized through its fair lock and granted in arrival order; different accounts never
// wait on each other.
type PointService struct {
	store   store.Store
	locks   locks.Provider
	audit   AuditLogger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewPointService(st store.Store, lp locks.Provider, opts ...PointServiceOption) *PointService {
	s := &PointService{
		store: st,
		locks: lp,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Point returns the balance of id. Unknown ids report zero.
func (s *PointService) Point(ctx context.Context, id int64) (*models.AccountPoint, error) {
	p, err := s.store.SelectByID(ctx, id)
	if err != nil {
		log.Printf("[PointService] failed to read point id:%d: %v", id, err)
		return nil, err
	}
	return p, nil
}

// Histories returns every successful mutation of id in the order it was applied.
func (s *PointService) Histories(ctx context.Context, id int64) ([]models.PointHistory, error) {
	histories, err := s.store.SelectAllByAccountID(ctx, id)
	if err != nil {
		log.Printf("[PointService] failed to read histories id:%d: %v", id, err)
		return nil, err
	}
	if histories == nil {
		histories = []models.PointHistory{}
	}
	return histories, nil
}

func (s *PointService) Charge(ctx context.Context, id, amount int64) (*models.AccountPoint, error) {
	return s.mutate(ctx, id, amount, models.TransactionTypeCharge)
}

func (s *PointService) Use(ctx context.Context, id, amount int64) (*models.AccountPoint, error) {
	return s.mutate(ctx, id, amount, models.TransactionTypeUse)
}

func (s *PointService) mutate(ctx context.Context, id, amount int64, txType models.TransactionType) (*models.AccountPoint, error) {
	if amount <= 0 {
		err := &models.BalanceError{Kind: models.ErrInvalidAmount, AccountID: id, Amount: amount}
		s.reject(id, txType, amount, 0, err)
		return nil, err
	}

	// Once queued the request runs to completion, even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	lock := s.locks.LockFor(id)
	waitStart := time.Now()
	lock.Lock()
	defer lock.Unlock()
	s.metrics.ObserveLockWait(time.Since(waitStart))

	current, err := s.store.SelectByID(ctx, id)
	if err != nil {
		s.fail(id, txType, amount, err)
		return nil, err
	}

	next, err := models.Apply(*current, txType, amount)
	if err != nil {
		s.reject(id, txType, amount, current.Point, err)
		return nil, err
	}

	var updated *models.AccountPoint
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Insert(ctx, id, amount, txType, s.now()); err != nil {
			return err
		}
		updated, err = tx.InsertOrUpdate(ctx, id, next)
		return err
	})
	if err != nil {
		s.fail(id, txType, amount, err)
		return nil, err
	}

	s.metrics.ObserveMutation(string(txType), metrics.OutcomeSuccess)
	if s.audit != nil {
		s.audit.LogMutation(id, txType, amount, updated.Point)
	}
	return updated, nil
}

func (s *PointService) reject(id int64, txType models.TransactionType, amount, point int64, reason error) {
	s.metrics.ObserveMutation(string(txType), metrics.OutcomeRejected)
	if s.audit != nil {
		s.audit.LogRejected(id, txType, amount, point, reason)
	}
	if !errors.Is(reason, models.ErrInvalidAmount) {
		log.Printf("[PointService] %s rejected: %v", txType, reason)
	}
}

func (s *PointService) fail(id int64, txType models.TransactionType, amount int64, err error) {
	s.metrics.ObserveMutation(string(txType), metrics.OutcomeError)
	if s.audit != nil {
		s.audit.LogError(id, txType, amount, err)
	}
	log.Printf("[PointService] %s failed id:%d, amount:%d: %v", txType, id, amount, err)
}
