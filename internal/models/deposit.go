package models

import "time"

type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositCompleted DepositStatus = "completed"
	DepositFailed    DepositStatus = "failed"
)

// Deposit tracks a gateway payment intent until the gateway confirms it.
type Deposit struct {
	ID          string        `json:"id" db:"id"`
	AccountID   string        `json:"accountId" db:"account_id"`
	Amount      int64         `json:"amount" db:"amount"`
	GatewayRef  string        `json:"gatewayRef" db:"gateway_ref"`
	Status      DepositStatus `json:"status" db:"status"`
	EntryID     *string       `json:"entryId,omitempty" db:"entry_id"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	CompletedAt *time.Time    `json:"completedAt,omitempty" db:"completed_at"`
}

// VirtualGift is a catalog item that can be sent during a live stream.
type VirtualGift struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price     int64     `json:"price" db:"price"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// IdempotencyRecord binds a client-supplied key to the settlement it produced.
type IdempotencyRecord struct {
	Key         string    `json:"key" db:"key"`
	AccountID   string    `json:"accountId" db:"account_id"`
	Scope       string    `json:"scope" db:"scope"`
	RequestHash string    `json:"requestHash" db:"request_hash"`
	EntryID     string    `json:"entryId" db:"entry_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
