// Package audit records the outcome of every processed message.
package audit

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusSuccess Status = "Success"
	StatusIgnored Status = "Ignored"
	StatusError   Status = "Error"
)

// Record is one append-only audit entry. Reasons keep the order in which
// they were produced.
type Record struct {
	MessageID        ulid.ULID
	Status           Status
	Reasons          []string
	EventType        string
	SchemaRef        string
	Payload          []byte
	SystemOfInterest string
	BodyOfInterest   string
	Timestamp        time.Time
}

// Sink persists audit records. Append must honour ctx deadlines.
type Sink interface {
	Name() string
	Append(ctx context.Context, rec Record) error
}
