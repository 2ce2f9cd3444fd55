package models

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

type SessionType string

const (
	SessionChat  SessionType = "chat"
	SessionCall  SessionType = "call"
	SessionVideo SessionType = "video"
)

// Session is a timed, per-minute billed engagement between a client and a provider.
type Session struct {
	ID                string        `json:"id" db:"id"`
	ClientAccountID   string        `json:"clientAccountId" db:"client_account_id"`
	ProviderAccountID string        `json:"providerAccountId" db:"provider_account_id"`
	SessionType       SessionType   `json:"sessionType" db:"session_type"`
	RatePerMinute     int64         `json:"ratePerMinute" db:"rate_per_minute"`
	Promotional       bool          `json:"promotional" db:"promotional"`
	Status            SessionStatus `json:"status" db:"status"`
	StartedAt         time.Time     `json:"startedAt" db:"started_at"`
	EndedAt           *time.Time    `json:"endedAt,omitempty" db:"ended_at"`
	DurationMinutes   int64         `json:"durationMinutes" db:"duration_minutes"`
	TotalCharge       int64         `json:"totalCharge" db:"total_charge"`
	ForceEnded        bool          `json:"forceEnded" db:"force_ended"`
	UpdatedAt         time.Time     `json:"updatedAt" db:"updated_at"`
}

// BillableMinutes rounds elapsed time up to whole minutes.
func BillableMinutes(startedAt, endedAt time.Time) int64 {
	elapsed := endedAt.Sub(startedAt)
	if elapsed <= 0 {
		return 0
	}
	minutes := int64(elapsed / time.Minute)
	if elapsed%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// Category returns the revenue split category that applies to this session.
func (s *Session) Category() Category {
	if s.Promotional {
		return CategoryPromotional
	}
	return CategorySession
}
