package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types carried on the clinic queue.
const (
	TypeNotification = "notification"
	TypeLedgerSync   = "ledger_sync"
)

// Ledger entities that can be mirrored.
const (
	EntityPayment = "payment"
	EntityExpense = "expense"
)

// Message is the envelope published on the clinic exchange. Exactly one of
// Notification and Sync is set, matching Type.
type Message struct {
	Type         string               `json:"type"`
	Notification *NotificationMessage `json:"notification,omitempty"`
	Sync         *LedgerSyncMessage   `json:"sync,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// NotificationMessage asks the notifier to deliver a patient message,
// no earlier than SendAt.
type NotificationMessage struct {
	Kind          string    `json:"kind"`
	Channel       string    `json:"channel"`
	To            string    `json:"to"`
	Subject       string    `json:"subject,omitempty"`
	Body          string    `json:"body"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	SendAt        time.Time `json:"sendAt"`
}

// LedgerSyncMessage is a lightweight pointer to a ledger entry; the worker
// reads the full entry from the ledger before mirroring it.
type LedgerSyncMessage struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

func NewNotificationMessage(n NotificationMessage) *Message {
	return &Message{Type: TypeNotification, Notification: &n, Timestamp: time.Now()}
}

func NewLedgerSyncMessage(entity, id string) *Message {
	return &Message{Type: TypeLedgerSync, Sync: &LedgerSyncMessage{Entity: entity, ID: id}, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes and checks an envelope.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch {
	case msg.Type == TypeNotification && msg.Notification != nil:
	case msg.Type == TypeLedgerSync && msg.Sync != nil && msg.Sync.ID != "":
	default:
		return nil, fmt.Errorf("malformed %q message", msg.Type)
	}
	return &msg, nil
}
