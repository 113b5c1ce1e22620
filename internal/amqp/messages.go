package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sadopc/itrack/internal/store"
)

// RecordChangeMessage carries one write to a replica. Deletes have no
// record.
type RecordChangeMessage struct {
	Op         string         `json:"op"`
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Record     map[string]any `json:"record,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewRecordChangeMessage(c store.Change) *RecordChangeMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := &RecordChangeMessage{
		Op:         c.Op,
		Collection: c.Collection,
		ID:         c.ID,
		Timestamp:  ts.UTC(),
	}
	if c.Record != nil {
		msg.Record = map[string]any(c.Record.Clone())
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToChange converts the message back into a store change. JSON numbers
// arrive as float64; the store schemas accept them for integer fields.
func (m *RecordChangeMessage) ToChange() store.Change {
	c := store.Change{Op: m.Op, Collection: m.Collection, ID: m.ID, At: m.Timestamp}
	if m.Record != nil {
		c.Record = store.Record(m.Record).Clone()
	}
	return c
}

// Validate rejects messages a replica could never apply.
func (m *RecordChangeMessage) Validate() error {
	schema, err := store.SchemaFor(m.Collection)
	if err != nil {
		return err
	}
	if m.ID == "" {
		return fmt.Errorf("record change: empty id")
	}
	switch m.Op {
	case store.OpPut:
		if m.Record == nil {
			return fmt.Errorf("record change: put without record")
		}
		if id, _ := m.Record["id"].(string); id != m.ID {
			return fmt.Errorf("record change: id %q does not match record id %q", m.ID, id)
		}
		if err := schema.Check(store.Record(m.Record)); err != nil {
			return fmt.Errorf("record change: %w", err)
		}
	case store.OpDelete:
	default:
		return fmt.Errorf("record change: unknown op %q", m.Op)
	}
	return nil
}

// RecordChangeMessageFromJSON decodes and validates a message.
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
