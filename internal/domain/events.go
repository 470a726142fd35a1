package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Interaction event types.
const (
	EventFactorSelected = "factor_selected"
	EventCountyViewed   = "county_viewed"
)

// InteractionEvent records one user interaction with the map.
type InteractionEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	FactorCode string    `json:"factor_code,omitempty"`
	CountyKey  JoinKey   `json:"county_key,omitempty"`
	Found      bool      `json:"found,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewFactorSelected builds the event for a factor selection. An empty code
// records a cleared selection.
func NewFactorSelected(code string) InteractionEvent {
	return InteractionEvent{
		ID:         uuid.NewString(),
		Type:       EventFactorSelected,
		FactorCode: code,
		OccurredAt: Now(),
	}
}

// NewCountyViewed builds the event for a county detail view.
func NewCountyViewed(key JoinKey, found bool) InteractionEvent {
	return InteractionEvent{
		ID:         uuid.NewString(),
		Type:       EventCountyViewed,
		CountyKey:  key,
		Found:      found,
		OccurredAt: Now(),
	}
}

// PartitionKey is the message key used when publishing the event.
func (e InteractionEvent) PartitionKey() string {
	if e.CountyKey != "" {
		return string(e.CountyKey)
	}
	return e.FactorCode
}

// EventPublisher delivers interaction events to an analytics sink.
type EventPublisher interface {
	Publish(ctx context.Context, event InteractionEvent) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, InteractionEvent) error { return nil }
