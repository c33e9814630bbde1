// Package notify maintains the authenticated push channel of the back office:
// a websocket connection keyed to the current access token, an explicit
// reconnect state machine with bounded exponential backoff and a rolling
// buffer of the most recent notifications.
package notify

import (
	"encoding/json"
	"time"
)

// State of the channel connection lifecycle.
type State int

const (
	// StateDisconnected is the initial state and the resting state between
	// connection attempts.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the websocket is open and being read.
	StateConnected
	// StateGivenUp is terminal: the retry budget is exhausted and only a new
	// login restarts the channel.
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// Kind tags a parsed notification.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindLoan        Kind = "loan"
	KindUser        Kind = "user"
	// KindUnknown carries an unrecognized message through for display only.
	KindUnknown Kind = "unknown"
)

// TransactionEvent announces a settled transaction. Amount is minor units.
type TransactionEvent struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
}

// LoanEvent announces a loan application state change.
type LoanEvent struct {
	LoanID string `json:"loan_id"`
}

// UserEvent announces a user account event.
type UserEvent struct {
	Username string `json:"username"`
}

// Notification is one parsed push message. Exactly one payload pointer is set
// for the recognized kinds; unknown kinds keep only the raw payload.
type Notification struct {
	Kind        Kind
	ReceivedAt  time.Time
	Transaction *TransactionEvent
	Loan        *LoanEvent
	User        *UserEvent
	Raw         json.RawMessage
}

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// parseNotification decodes one inbound frame. The second return is false for
// frames the channel should silently drop.
func parseNotification(raw []byte, now time.Time) (Notification, bool) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Notification{}, false
	}
	if msg.Type == "" {
		return Notification{}, false
	}

	n := Notification{ReceivedAt: now, Raw: msg.Data}
	switch Kind(msg.Type) {
	case KindTransaction:
		var p TransactionEvent
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return Notification{}, false
		}
		n.Kind = KindTransaction
		n.Transaction = &p
	case KindLoan:
		var p LoanEvent
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return Notification{}, false
		}
		n.Kind = KindLoan
		n.Loan = &p
	case KindUser:
		var p UserEvent
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return Notification{}, false
		}
		n.Kind = KindUser
		n.User = &p
	default:
		n.Kind = KindUnknown
	}
	return n, true
}
