package models

import "time"

// WebhookEvent records every verified gateway delivery we acted on
type WebhookEvent struct {
	EventID          string    `gorm:"type:varchar(100);primaryKey" json:"event_id"`
	EventType        string    `gorm:"type:varchar(64);not null" json:"event_type"`
	GatewayPaymentID string    `gorm:"type:varchar(64);index" json:"gateway_payment_id"`
	Outcome          string    `gorm:"type:varchar(32)" json:"outcome"`
	ReceivedAt       time.Time `json:"received_at"`
}
