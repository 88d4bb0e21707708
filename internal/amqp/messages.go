package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// BudgetChangedMessage announces that a fiscal year's budget document was
// rewritten. Consumers reload the document themselves.
type BudgetChangedMessage struct {
	FiscalYear int       `json:"fiscalYear"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewBudgetChangedMessage(fiscalYear int, reason string) *BudgetChangedMessage {
	return &BudgetChangedMessage{
		FiscalYear: fiscalYear,
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BudgetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetChangedMessageFromJSON decodes a message and rejects ones without a
// fiscal year.
func BudgetChangedMessageFromJSON(data []byte) (*BudgetChangedMessage, error) {
	var msg BudgetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.FiscalYear <= 0 {
		return nil, fmt.Errorf("budget changed message: invalid fiscal year %d", msg.FiscalYear)
	}
	return &msg, nil
}
