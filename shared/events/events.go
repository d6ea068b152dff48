package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	UserRegistered = "user.registered"

	AccountCreated = "account.created"
	AccountUpdated = "account.updated"
	AccountDeleted = "account.deleted"

	TransactionCreated = "transaction.created"
	TransactionUpdated = "transaction.updated"
	TransactionDeleted = "transaction.deleted"
)

// Stream names. With the Kafka broker these are used as topic names.
const (
	UserEventsStream        = "user.events"
	AccountEventsStream     = "account.events"
	TransactionEventsStream = "transaction.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Decode re-marshals the loosely typed Data into out.
func (e Event) Decode(out any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event data: %w", e.Type, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s event data: %w", e.Type, err)
	}
	return nil
}

// Publisher appends events to a named stream.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
	Close() error
}

// Consumer delivers events from one stream to a Handler until ctx ends.
type Consumer interface {
	Start(ctx context.Context) error
}

type Handler func(ctx context.Context, event Event) error

type UserRegisteredEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Account events
type AccountEvent struct {
	AccountID string `json:"accountId"`
	UserID    string `json:"userId"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type,omitempty"`
}

// TransactionEvent is published for every transaction mutation. AccountIDs
// and Months cover both the previous and the new version of the row so
// consumers can invalidate everything the change touched.
type TransactionEvent struct {
	TransactionID string   `json:"transactionId"`
	UserID        string   `json:"userId"`
	Type          string   `json:"type"`
	Amount        string   `json:"amount"`
	AccountIDs    []string `json:"accountIds"`
	Months        []string `json:"months"`
}
