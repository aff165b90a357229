package models

import (
	"time"
)

const (
	ZeroPoint int64 = 0
	MaxPoint  int64 = 10000
)

type TransactionType string

const (
	TransactionTypeCharge TransactionType = "CHARGE"
	TransactionTypeUse    TransactionType = "USE"
)

// AccountPoint is the current point balance of one account.
type AccountPoint struct {
	ID        int64     `json:"id" db:"id"`
	Point     int64     `json:"point" db:"point"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PointHistory is an immutable record of one successful charge or use.
type PointHistory struct {
	ID        int64           `json:"id" db:"id"`
	AccountID int64           `json:"account_id" db:"account_id"`
	Amount    int64           `json:"amount" db:"amount"` // magnitude, never the resulting balance
	Type      TransactionType `json:"type" db:"type"`     // CHARGE or USE
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// EmptyAccountPoint returns the zero-balance record for an account that has never been written.
func EmptyAccountPoint(id int64, now time.Time) *AccountPoint {
	return &AccountPoint{ID: id, Point: ZeroPoint, UpdatedAt: now}
}

func (t TransactionType) Valid() bool {
	return t == TransactionTypeCharge || t == TransactionTypeUse
}
