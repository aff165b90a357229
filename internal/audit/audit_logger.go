package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/pointledger/internal/models"
)

const (
	StatusSuccess  = "SUCCESS"
	StatusRejected = "REJECTED"
	StatusFailed   = "FAILED"
)

type AuditEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	AccountID int64     `json:"account_id"`
	Amount    int64     `json:"amount"`
	Point     int64     `json:"point"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// AuditLogger writes one JSON line per balance mutation attempt.
type AuditLogger struct {
	out *log.Logger
	now func() time.Time
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{out: log.Default(), now: time.Now}
}

// NewAuditLoggerTo writes events to out instead of the standard logger.
func NewAuditLoggerTo(out *log.Logger) *AuditLogger {
	return &AuditLogger{out: out, now: time.Now}
}

// LogMutation records an applied charge or use with the resulting balance.
func (a *AuditLogger) LogMutation(accountID int64, txType models.TransactionType, amount, point int64) {
	a.log(AuditEvent{
		EventType: string(txType),
		AccountID: accountID,
		Amount:    amount,
		Point:     point,
		Status:    StatusSuccess,
	})
}

// LogRejected records a charge or use refused by the balance rules. Point is the unchanged balance,
// or 0 when the amount was rejected before the balance was read.
func (a *AuditLogger) LogRejected(accountID int64, txType models.TransactionType, amount, point int64, reason error) {
	a.log(AuditEvent{
		EventType: string(txType),
		AccountID: accountID,
		Amount:    amount,
		Point:     point,
		Status:    StatusRejected,
		Details:   map[string]string{"reason": reason.Error()},
	})
}

func (a *AuditLogger) LogError(accountID int64, txType models.TransactionType, amount int64, err error) {
	a.log(AuditEvent{
		EventType: string(txType),
		AccountID: accountID,
		Amount:    amount,
		Status:    StatusFailed,
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	event.EventID = uuid.NewString()
	event.Timestamp = a.now()
	data, _ := json.Marshal(event)
	a.out.Printf("AUDIT: %s", string(data))
}
