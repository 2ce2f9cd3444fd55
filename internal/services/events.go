package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/soulseer/settlement/internal/models"
)

const ledgerEventsQueue = "ledger_events"

// LedgerEvent is pushed after a settlement commits so that the notification
// subsystem can react without polling the ledger.
type LedgerEvent struct {
	EntryID         string             `json:"entryId"`
	AccountID       string             `json:"accountId"`
	Kind            models.EntryKind   `json:"kind"`
	Direction       models.Direction   `json:"direction"`
	Status          models.EntryStatus `json:"status"`
	NetAmount       int64              `json:"netAmount"`
	RelatedEntityID string             `json:"relatedEntityId,omitempty"`
	OccurredAt      time.Time          `json:"occurredAt"`
}

type EventPublisher struct {
	rdb *redis.Client
}

func NewEventPublisher(rdb *redis.Client) *EventPublisher {
	return &EventPublisher{rdb: rdb}
}

// Publish enqueues one event per entry. Delivery is best effort: the ledger
// is already committed and stays the source of truth.
func (p *EventPublisher) Publish(ctx context.Context, entries []models.LedgerEntry) {
	if p == nil || p.rdb == nil || len(entries) == 0 {
		return
	}
	values := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(LedgerEvent{
			EntryID:         e.ID,
			AccountID:       e.AccountID,
			Kind:            e.Kind,
			Direction:       e.Direction,
			Status:          e.Status,
			NetAmount:       e.NetAmount,
			RelatedEntityID: e.RelatedEntityID,
			OccurredAt:      e.CreatedAt,
		})
		if err != nil {
			continue
		}
		values = append(values, string(data))
	}
	if err := p.rdb.RPush(ctx, ledgerEventsQueue, values...).Err(); err != nil {
		log.Printf("[EVENTS] failed to enqueue %d ledger events: %v", len(values), err)
	}
}
