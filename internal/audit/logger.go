package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	EntityID  string    `json:"entity_id"`
	AccountID string    `json:"account_id,omitempty"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger writes one JSON document per monetary event. Output goes through the
// standard logger so it lands in the same stream as the service logs.
type Logger struct {
	out *log.Logger
}

func NewLogger() *Logger {
	return &Logger{out: log.Default()}
}

// NewLoggerTo builds a logger over a custom destination, used by tests.
func NewLoggerTo(out *log.Logger) *Logger {
	return &Logger{out: out}
}

func (a *Logger) LogSettlement(kind, entityID, payer, payee string, gross, fee, net int64) {
	a.log(Event{
		EventType: "SETTLEMENT",
		EntityID:  entityID,
		AccountID: payer,
		Amount:    gross,
		Status:    "COMPLETED",
		Details: map[string]any{
			"kind":         kind,
			"payee":        payee,
			"platform_fee": fee,
			"net_amount":   net,
		},
	})
}

func (a *Logger) LogRefund(refundID, originalEntryID, accountID string, amount int64, status, reason string) {
	a.log(Event{
		EventType: "REFUND",
		EntityID:  refundID,
		AccountID: accountID,
		Amount:    amount,
		Status:    status,
		Details: map[string]string{
			"original_entry_id": originalEntryID,
			"reason":            reason,
		},
	})
}

func (a *Logger) LogPayout(payoutID, accountID string, amount int64, status, detail string) {
	a.log(Event{
		EventType: "PAYOUT",
		EntityID:  payoutID,
		AccountID: accountID,
		Amount:    amount,
		Status:    status,
		Details:   map[string]string{"details": detail},
	})
}

func (a *Logger) LogInvariantViolation(accountID string, balance, computed int64) {
	a.log(Event{
		EventType: "INVARIANT_VIOLATION",
		EntityID:  accountID,
		AccountID: accountID,
		Amount:    balance - computed,
		Status:    "PAYOUT_HOLD",
		Details: map[string]int64{
			"balance":      balance,
			"ledger_total": computed,
			"discrepancy":  balance - computed,
		},
	})
}

func (a *Logger) LogError(entityID, accountID string, err error) {
	a.log(Event{
		EventType: "ERROR",
		EntityID:  entityID,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(entityID, accountID, operation, details string) {
	a.log(Event{
		EventType: operation,
		EntityID:  entityID,
		AccountID: accountID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (a *Logger) log(event Event) {
	if a == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	data, _ := json.Marshal(event)
	a.out.Printf("AUDIT: %s", string(data))
}
