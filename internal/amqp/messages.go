package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Reasons carried by TripChangedMessage.
const (
	ReasonTripCreated     = "trip_created"
	ReasonTripDeleted     = "trip_deleted"
	ReasonCurrencyChanged = "currency_changed"
	ReasonMemberAdded     = "member_added"
	ReasonMemberRemoved   = "member_removed"
	ReasonExpenseAdded    = "expense_added"
	ReasonExpenseDeleted  = "expense_deleted"
	ReasonExpensesCleared = "expenses_cleared"
	ReasonDataCleared     = "data_cleared"
)

// TripChangedMessage says only which trip changed; consumers reload the
// trip from storage.
type TripChangedMessage struct {
	TripID    string    `json:"trip_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTripChangedMessage(tripID, reason string) *TripChangedMessage {
	return &TripChangedMessage{TripID: tripID, Reason: reason, Timestamp: time.Now().UTC()}
}

func (m *TripChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TripChangedMessageFromJSON(data []byte) (*TripChangedMessage, error) {
	var msg TripChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TripID == "" {
		return nil, errors.New("message has no trip_id")
	}
	return &msg, nil
}
