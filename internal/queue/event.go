// Package queue defines the QR lifecycle events exchanged over RabbitMQ,
// the publisher used by the services and the consumer that appends them to
// an audit log file.
package queue

import (
	"time"

	"github.com/addwise/addwise-hub/internal/model"
)

// Event types.  They double as routing keys on the topic exchange.
const (
	EventCodesIssued    = "qrcode.issued"
	EventCodeAssigned   = "qrcode.assigned"
	EventLocationPushed = "qrcode.location_pushed"
	EventCodeUpdated    = "qrcode.updated"
	EventCodeDeleted    = "qrcode.deleted"
	EventCodesCleared   = "qrcode.cleared"
)

// Event is published after a successful QR lifecycle mutation.  It carries
// enough context for downstream consumers to log or notify without
// querying the primary database.
type Event struct {
	Type       string          `json:"type"`
	QRCodeID   string          `json:"qr_code_id,omitempty"`
	QRValue    string          `json:"qr_value,omitempty"`
	OwnerID    string          `json:"owner_id,omitempty"`
	ActorID    string          `json:"actor_id,omitempty"`
	Count      int             `json:"count,omitempty"`
	Location   *model.Location `json:"location,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
