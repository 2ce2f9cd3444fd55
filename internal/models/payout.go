package models

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

func (s PayoutStatus) Open() bool {
	return s == PayoutPending || s == PayoutProcessing
}

// PayoutRequest moves an amount of a provider's available balance to an external destination.
// RunKey is set for requests created by a scheduled batch and is unique per provider.
type PayoutRequest struct {
	ID                        string       `json:"id" db:"id"`
	ProviderAccountID         string       `json:"providerAccountId" db:"provider_account_id"`
	Amount                    int64        `json:"amount" db:"amount"`
	Status                    PayoutStatus `json:"status" db:"status"`
	RunKey                    *string      `json:"runKey,omitempty" db:"run_key"`
	Destination               string       `json:"destination" db:"destination"`
	ExternalTransferReference *string      `json:"externalTransferReference,omitempty" db:"external_transfer_reference"`
	FailureReason             *string      `json:"failureReason,omitempty" db:"failure_reason"`
	Attempts                  int          `json:"attempts" db:"attempts"`
	CreatedAt                 time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt                 time.Time    `json:"updatedAt" db:"updated_at"`
	CompletedAt               *time.Time   `json:"completedAt,omitempty" db:"completed_at"`
}
