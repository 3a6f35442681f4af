package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventTypePaymentSucceeded = "payment.succeeded"
)

// PaymentEvent is the canonical payment event parsed by adapters.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	OrderID         snowflake.ID
	Amount          int64
	Currency        string
	OccurredAt      time.Time
}

// EventRecord stores a received payment event for idempotent processing.
// The (provider, provider_event_id) pair is unique; replayed deliveries
// load the stored row instead of inserting a second one.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:payment_events_provider_event"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:payment_events_provider_event"`
	EventType       string         `gorm:"type:text;not null"`
	OrderID         snowflake.ID   `gorm:"not null;index"`
	Payload         datatypes.JSON `gorm:"not null"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }
