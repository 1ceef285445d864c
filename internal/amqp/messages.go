package amqp

import (
	"encoding/json"
	"time"
)

// ChangeEventMessage carries one reported set of ledger changes from the
// checker to the notify worker. The changes travel in their serialized form
// so the worker renders exactly what the checker saw.
type ChangeEventMessage struct {
	SocietyName        string          `json:"societyName"`
	Changes            json.RawMessage `json:"changes"`
	SheetURL           string          `json:"sheetUrl"`
	PDFURL             string          `json:"pdfUrl,omitempty"`
	OldLedgerTimestamp string          `json:"oldLedgerTimestamp"`
	Timestamp          time.Time       `json:"timestamp"`
}

// NewChangeEventMessage creates a change event ready for publishing
func NewChangeEventMessage(societyName string, changes []byte, sheetURL, pdfURL, oldTimestamp string) *ChangeEventMessage {
	return &ChangeEventMessage{
		SocietyName:        societyName,
		Changes:            json.RawMessage(changes),
		SheetURL:           sheetURL,
		PDFURL:             pdfURL,
		OldLedgerTimestamp: oldTimestamp,
		Timestamp:          time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeEventMessageFromJSON creates a message from JSON bytes
func ChangeEventMessageFromJSON(data []byte) (*ChangeEventMessage, error) {
	var msg ChangeEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
