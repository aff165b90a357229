package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruralpay/pointledger/internal/locks"
	"github.com/ruralpay/pointledger/internal/metrics"
	"github.com/ruralpay/pointledger/internal/models"
	"github.com/ruralpay/pointledger/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(opts ...PointServiceOption) (*PointService, *locks.Registry) {
	lp := locks.NewRegistry()
	return NewPointService(memory.New(), lp, opts...), lp
}

func TestPointService_Point(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()

	t.Run("unknown account reads as zero", func(t *testing.T) {
		p, err := s.Point(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), p.ID)
		assert.Equal(t, models.ZeroPoint, p.Point)

		histories, err := s.Histories(ctx, 42)
		require.NoError(t, err)
		assert.NotNil(t, histories)
		assert.Empty(t, histories)
	})

	t.Run("reflects charges", func(t *testing.T) {
		_, err := s.Charge(ctx, 1, 300)
		require.NoError(t, err)

		p, err := s.Point(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(300), p.Point)
	})
}

func TestPointService_Charge(t *testing.T) {
	ctx := context.Background()

	t.Run("adds to the balance and records a history", func(t *testing.T) {
		s, _ := newTestService()

		p, err := s.Charge(ctx, 1, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), p.Point)

		histories, err := s.Histories(ctx, 1)
		require.NoError(t, err)
		require.Len(t, histories, 1)
		assert.Equal(t, models.TransactionTypeCharge, histories[0].Type)
		assert.Equal(t, int64(1000), histories[0].Amount)
	})

	t.Run("exactly reaching the maximum is allowed", func(t *testing.T) {
		s, _ := newTestService()

		p, err := s.Charge(ctx, 1, models.MaxPoint)
		require.NoError(t, err)
		assert.Equal(t, models.MaxPoint, p.Point)
	})

	t.Run("exceeding the maximum is rejected without writes", func(t *testing.T) {
		s, _ := newTestService()
		_, err := s.Charge(ctx, 1, 9000)
		require.NoError(t, err)

		_, err = s.Charge(ctx, 1, 2000)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrExceededBalance)

		var be *models.BalanceError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, int64(9000), be.Point)
		assert.Equal(t, int64(2000), be.Amount)

		p, _ := s.Point(ctx, 1)
		assert.Equal(t, int64(9000), p.Point)
		histories, _ := s.Histories(ctx, 1)
		assert.Len(t, histories, 1)
	})

	t.Run("amount near the int64 limit cannot wrap the balance", func(t *testing.T) {
		s, _ := newTestService()
		_, err := s.Charge(ctx, 1, 1)
		require.NoError(t, err)

		_, err = s.Charge(ctx, 1, math.MaxInt64)
		assert.ErrorIs(t, err, models.ErrExceededBalance)

		p, _ := s.Point(ctx, 1)
		assert.Equal(t, int64(1), p.Point)
		histories, _ := s.Histories(ctx, 1)
		assert.Len(t, histories, 1)
	})

	t.Run("non-positive amounts are rejected", func(t *testing.T) {
		s, _ := newTestService()

		for _, amount := range []int64{0, -5} {
			_, err := s.Charge(ctx, 1, amount)
			assert.ErrorIs(t, err, models.ErrInvalidAmount)
		}

		histories, _ := s.Histories(ctx, 1)
		assert.Empty(t, histories)
	})
}

func TestPointService_Use(t *testing.T) {
	ctx := context.Background()

	t.Run("subtracts from the balance", func(t *testing.T) {
		s, _ := newTestService()
		_, err := s.Charge(ctx, 1, 500)
		require.NoError(t, err)

		p, err := s.Use(ctx, 1, 200)
		require.NoError(t, err)
		assert.Equal(t, int64(300), p.Point)

		histories, _ := s.Histories(ctx, 1)
		require.Len(t, histories, 2)
		assert.Equal(t, models.TransactionTypeUse, histories[1].Type)
	})

	t.Run("using the whole balance is allowed", func(t *testing.T) {
		s, _ := newTestService()
		_, _ = s.Charge(ctx, 1, 500)

		p, err := s.Use(ctx, 1, 500)
		require.NoError(t, err)
		assert.Equal(t, models.ZeroPoint, p.Point)
	})

	t.Run("overdraw is rejected without writes", func(t *testing.T) {
		s, _ := newTestService()
		_, _ = s.Charge(ctx, 1, 50)

		_, err := s.Use(ctx, 1, 100)
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
		assert.EqualError(t, err, "insufficient balance id:1, point:50, amount:100")

		p, _ := s.Point(ctx, 1)
		assert.Equal(t, int64(50), p.Point)
		histories, _ := s.Histories(ctx, 1)
		assert.Len(t, histories, 1)
	})

	t.Run("unknown account cannot be used", func(t *testing.T) {
		s, _ := newTestService()

		_, err := s.Use(ctx, 77, 1)
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
	})
}

func TestPointService_ConcurrentCharges(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()

	var wg sync.WaitGroup
	for i := int64(1); i <= 10; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := s.Charge(ctx, 1, amount)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, err := s.Point(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(55), p.Point)

	histories, err := s.Histories(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, histories, 10)
}

func TestPointService_ConcurrentUses(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	_, err := s.Charge(ctx, 1, 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := int64(1); i <= 10; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := s.Use(ctx, 1, amount)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, _ := s.Point(ctx, 1)
	assert.Equal(t, int64(945), p.Point)
	histories, _ := s.Histories(ctx, 1)
	assert.Len(t, histories, 11)
}

func TestPointService_ConcurrentChargeAndUsePairs(t *testing.T) {
	ctx := context.Background()
	s := NewPointService(memory.New(memory.WithThrottle(2*time.Millisecond)), locks.NewRegistry())
	const n = 10

	var wg sync.WaitGroup
	for i := int64(1); i <= n; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := s.Charge(ctx, 1, amount*100)
			assert.NoError(t, err)
			_, err = s.Use(ctx, 1, amount*100)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, _ := s.Point(ctx, 1)
	assert.Equal(t, models.ZeroPoint, p.Point)
	histories, _ := s.Histories(ctx, 1)
	assert.Len(t, histories, 2*n)
}

func TestPointService_ConcurrentOverdrawNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	_, _ = s.Charge(ctx, 1, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Use(ctx, 1, 30); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	p, _ := s.Point(ctx, 1)
	assert.Equal(t, int64(10), p.Point)
}

func TestPointService_ArrivalOrder(t *testing.T) {
	ctx := context.Background()
	s, lp := newTestService()

	held := lp.LockFor(1)
	held.Lock()

	var wg sync.WaitGroup
	for i := int64(1); i <= 5; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := s.Charge(ctx, 1, amount)
			assert.NoError(t, err)
		}(i)
		time.Sleep(20 * time.Millisecond)
	}
	held.Unlock()
	wg.Wait()

	histories, err := s.Histories(ctx, 1)
	require.NoError(t, err)
	require.Len(t, histories, 5)
	for i, h := range histories {
		assert.Equal(t, int64(i+1), h.Amount)
	}
}

func TestPointService_AccountsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s, lp := newTestService()

	held := lp.LockFor(1)
	held.Lock()
	defer held.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.Charge(ctx, 2, 100)
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("charge on account 2 blocked behind account 1")
	}
}

func TestPointService_CancelledCallerStillCompletes(t *testing.T) {
	s, lp := newTestService()

	held := lp.LockFor(1)
	held.Lock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Charge(ctx, 1, 100)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	held.Unlock()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("queued charge never completed")
	}

	p, _ := s.Point(context.Background(), 1)
	assert.Equal(t, int64(100), p.Point)
}

func TestPointService_StoreFailures(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection reset")

	t.Run("read failure propagates unchanged", func(t *testing.T) {
		st := &faultyStore{Store: memory.New(), selectErr: storeErr}
		s := NewPointService(st, locks.NewRegistry())

		_, err := s.Charge(ctx, 1, 100)
		assert.Same(t, storeErr, err)
		assert.False(t, models.IsBalanceError(err))
	})

	t.Run("write failure leaves no partial history", func(t *testing.T) {
		st := &faultyStore{Store: memory.New(), upsertErr: storeErr}
		s := NewPointService(st, locks.NewRegistry())

		_, err := s.Charge(ctx, 1, 100)
		assert.Same(t, storeErr, err)

		histories, err := s.Histories(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, histories)
		p, _ := s.Point(ctx, 1)
		assert.Equal(t, models.ZeroPoint, p.Point)
	})

	t.Run("lock is released after a failure", func(t *testing.T) {
		lp := locks.NewRegistry()
		st := &faultyStore{Store: memory.New(), selectErr: storeErr}
		s := NewPointService(st, lp)

		_, _ = s.Charge(ctx, 1, 100)
		assert.True(t, lp.LockFor(1).TryLock())
	})
}

func TestPointService_Audit(t *testing.T) {
	ctx := context.Background()
	auditLogger := new(MockAuditLogger)
	s, _ := newTestService(WithAuditLogger(auditLogger))

	auditLogger.On("LogMutation", int64(1), models.TransactionTypeCharge, int64(500), int64(500)).Once()
	auditLogger.On("LogRejected", int64(1), models.TransactionTypeUse, int64(600), int64(500), mock.Anything).Once()

	_, err := s.Charge(ctx, 1, 500)
	require.NoError(t, err)
	_, err = s.Use(ctx, 1, 600)
	require.Error(t, err)

	auditLogger.AssertExpectations(t)
}

func TestPointService_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	lp := locks.NewRegistry()
	s := NewPointService(memory.New(), lp, WithMetrics(metrics.NewCollector(reg, lp)))

	_, _ = s.Charge(ctx, 1, 500)
	_, _ = s.Use(ctx, 1, 600)

	count, err := testutil.GatherAndCount(reg, "point_mutations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "point_lock_wait_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPointService_HistoryTimestampsUseClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestService(WithClock(func() time.Time { return fixed }))

	_, err := s.Charge(context.Background(), 1, 10)
	require.NoError(t, err)

	histories, _ := s.Histories(context.Background(), 1)
	require.Len(t, histories, 1)
	assert.True(t, fixed.Equal(histories[0].CreatedAt))
}
