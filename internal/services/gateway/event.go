package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// EventPaymentCaptured is the only event that moves money in the ledger
const EventPaymentCaptured = "payment.captured"

// ErrMalformedEvent is returned for verified bodies we cannot interpret
var ErrMalformedEvent = errors.New("malformed webhook event")

// Event is the decoded webhook envelope
type Event struct {
	Event   string       `json:"event"`
	Payload EventPayload `json:"payload"`
}

type EventPayload struct {
	Payment struct {
		Entity PaymentEntity `json:"entity"`
	} `json:"payment"`
}

// PaymentEntity is the gateway's payment object. Amount is in minor units.
type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Email    string `json:"email"`
	// Notes is free-form. The gateway sends [] when there are none.
	Notes json.RawMessage `json:"notes"`
}

// Payment returns the payment entity of the event
func (e *Event) Payment() PaymentEntity {
	return e.Payload.Payment.Entity
}

// NoteMap returns the notes object. Anything other than a JSON object reads
// as empty.
func (p PaymentEntity) NoteMap() map[string]interface{} {
	var notes map[string]interface{}
	if err := json.Unmarshal(p.Notes, &notes); err != nil || notes == nil {
		return map[string]interface{}{}
	}
	return notes
}

// NoteString returns a note rendered as text, whatever its JSON type
func (p PaymentEntity) NoteString(key string) string {
	v, ok := p.NoteMap()[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// MajorAmount converts the minor-unit amount to a two-decimal major amount
func (p PaymentEntity) MajorAmount() float64 {
	f, _ := decimal.NewFromInt(p.Amount).Div(decimal.NewFromInt(100)).Round(2).Float64()
	return f
}

// DecodeEvent parses a verified body. payment.captured events must carry
// both the payment id and the gateway order id.
func DecodeEvent(rawBody []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.Event == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}
	if evt.Event == EventPaymentCaptured {
		p := evt.Payment()
		if p.ID == "" || p.OrderID == "" {
			return nil, fmt.Errorf("%w: payment.captured without payment or order id", ErrMalformedEvent)
		}
	}
	return &evt, nil
}
