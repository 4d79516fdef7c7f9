// Package queue defines the provisioning events exchanged over RabbitMQ
// and the consumer that journals them.
package queue

import (
    "fmt"
    "strings"
)

// Durable queues, one per event family.
const (
    CodeQueue = "qr.provisioned"
    SeatQueue = "qr.seat.changed"
)

// Code event actions.
const (
    ActionProvisioned = "provisioned"
    ActionDeleted     = "deleted"
)

// CodeEvent is published when a code is provisioned or deleted.  It
// carries enough for downstream consumers (print queue, audit, analytics)
// to act without querying the database.
type CodeEvent struct {
    Action     string   `json:"action"`
    TheaterID  uint64   `json:"theater_id"`
    CodeID     uint64   `json:"code_id"`
    QRName     string   `json:"qr_name"`
    QRType     string   `json:"qr_type"`
    SeatClass  string   `json:"seat_class,omitempty"`
    Seats      []string `json:"seats,omitempty"`
    OperatorID uint64   `json:"operator_id,omitempty"`
    At         string   `json:"at"` // RFC3339
}

// SeatChangedEvent is published after a seat of a code is added, updated
// or deleted.
type SeatChangedEvent struct {
    TheaterID uint64 `json:"theater_id"`
    CodeID    uint64 `json:"code_id"`
    Seat      string `json:"seat"`
    Action    string `json:"action"`
    At        string `json:"at"`
}

// LogLine renders the event as one journal line.
func (e CodeEvent) LogLine() string {
    seats := "[]"
    if len(e.Seats) > 0 {
        seats = "[" + strings.Join(e.Seats, ",") + "]"
    }
    return fmt.Sprintf("[%s] Code %s | theater_id=%d | code_id=%d | qr_name=%q | type=%s | operator_id=%d | seats=%s\n",
        e.At, e.Action, e.TheaterID, e.CodeID, e.QRName, e.QRType, e.OperatorID, seats)
}

func (e SeatChangedEvent) LogLine() string {
    return fmt.Sprintf("[%s] Seat %s | theater_id=%d | code_id=%d | seat=%s\n",
        e.At, e.Action, e.TheaterID, e.CodeID, e.Seat)
}
