package models

import (
	"errors"
	"fmt"
)

var (
	ErrExceededBalance     = errors.New("exceeded balance")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrUnknownTransaction  = errors.New("unknown transaction type")
)

// BalanceError reports a rejected charge or use together with the balance it was checked against.
// Amount validation happens before the balance is read, so Point is not meaningful for
// ErrInvalidAmount and is left out of its message.
type BalanceError struct {
	Kind      error
	AccountID int64
	Point     int64
	Amount    int64
}

func (e *BalanceError) Error() string {
	if errors.Is(e.Kind, ErrInvalidAmount) {
		return fmt.Sprintf("%s id:%d, amount:%d", e.Kind, e.AccountID, e.Amount)
	}
	return fmt.Sprintf("%s id:%d, point:%d, amount:%d", e.Kind, e.AccountID, e.Point, e.Amount)
}

func (e *BalanceError) Unwrap() error {
	return e.Kind
}

// IsBalanceError reports whether err is a caller-side rejection rather than an infrastructure failure.
func IsBalanceError(err error) bool {
	var be *BalanceError
	return errors.As(err, &be)
}

// ValidateCharge returns the balance after charging amount to p.
func ValidateCharge(p AccountPoint, amount int64) (int64, error) {
	if amount <= 0 {
		return p.Point, &BalanceError{Kind: ErrInvalidAmount, AccountID: p.ID, Point: p.Point, Amount: amount}
	}
	// Compare against the headroom so a huge amount cannot wrap the sum.
	if amount > MaxPoint-p.Point {
		return p.Point, &BalanceError{Kind: ErrExceededBalance, AccountID: p.ID, Point: p.Point, Amount: amount}
	}
	return p.Point + amount, nil
}

// ValidateUse returns the balance after using amount from p.
func ValidateUse(p AccountPoint, amount int64) (int64, error) {
	if amount <= 0 {
		return p.Point, &BalanceError{Kind: ErrInvalidAmount, AccountID: p.ID, Point: p.Point, Amount: amount}
	}
	left := p.Point - amount
	if left < ZeroPoint {
		return p.Point, &BalanceError{Kind: ErrInsufficientBalance, AccountID: p.ID, Point: p.Point, Amount: amount}
	}
	return left, nil
}

func Apply(p AccountPoint, txType TransactionType, amount int64) (int64, error) {
	switch txType {
	case TransactionTypeCharge:
		return ValidateCharge(p, amount)
	case TransactionTypeUse:
		return ValidateUse(p, amount)
	default:
		return p.Point, fmt.Errorf("%w: %q", ErrUnknownTransaction, txType)
	}
}
