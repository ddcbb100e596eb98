package broker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every payload crossing the broker. Requests carry ReplyTo
// and Deadline; replies echo CorrelationID only. Payload must be a JSON
// document and is embedded as is.
type Envelope struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	ReplyTo       string    `json:"reply_to,omitempty"`
	// Deadline is the Unix time in milliseconds after which the caller no
	// longer waits for a reply.
	Deadline int64           `json:"deadline,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Expired reports whether a responder can drop the request unanswered.
func (e *Envelope) Expired(now time.Time) bool {
	return e.Deadline > 0 && now.UnixMilli() > e.Deadline
}
