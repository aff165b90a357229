package services

import (
	"context"

	"github.com/ruralpay/pointledger/internal/models"
	"github.com/ruralpay/pointledger/internal/store"
	"github.com/ruralpay/pointledger/internal/store/memory"
	"github.com/stretchr/testify/mock"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogMutation(accountID int64, txType models.TransactionType, amount, point int64) {
	m.Called(accountID, txType, amount, point)
}

func (m *MockAuditLogger) LogRejected(accountID int64, txType models.TransactionType, amount, point int64, reason error) {
	m.Called(accountID, txType, amount, point, reason)
}

func (m *MockAuditLogger) LogError(accountID int64, txType models.TransactionType, amount int64, err error) {
	m.Called(accountID, txType, amount, err)
}

// faultyStore is a memory store whose reads or transactional balance writes can be made to fail.
type faultyStore struct {
	*memory.Store
	selectErr error
	upsertErr error
}

func (f *faultyStore) SelectByID(ctx context.Context, id int64) (*models.AccountPoint, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.Store.SelectByID(ctx, id)
}

func (f *faultyStore) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.RunInTx(ctx, func(tx store.Tx) error {
		return fn(&faultyTx{Tx: tx, upsertErr: f.upsertErr})
	})
}

type faultyTx struct {
	store.Tx
	upsertErr error
}

func (t *faultyTx) InsertOrUpdate(ctx context.Context, id int64, point int64) (*models.AccountPoint, error) {
	if t.upsertErr != nil {
		return nil, t.upsertErr
	}
	return t.Tx.InsertOrUpdate(ctx, id, point)
}
