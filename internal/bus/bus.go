// Package bus publishes job lifecycle events to NATS. The publisher is
// optional, a nil *Publisher silently drops every event.
package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types published over the lifetime of a job. The delivery
// events report the callback outcome after completed or failed.
const (
	EventAccepted       = "accepted"
	EventProgress       = "progress"
	EventCompleted      = "completed"
	EventFailed         = "failed"
	EventDelivered      = "delivered"
	EventDeliveryFailed = "delivery_failed"
	EventSuppressed     = "suppressed"
)

// Event is one lifecycle notification. Result payloads never travel
// over the bus, subscribers fetch job details through the API.
// Progress carries the reported percentage on progress events only.
type Event struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	TenantID  string    `json:"tenant_id"`
	Transform string    `json:"transform"`
	Progress  int       `json:"progress,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher struct {
	nc      *nats.Conn
	subject string
}

func Connect(url string, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

func (p *Publisher) Publish(event Event) error {
	if p == nil || p.nc == nil {
		return nil
	}
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, b)
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	_ = p.nc.Drain()
}
