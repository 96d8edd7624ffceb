package queue

import "github.com/google/uuid"

// CatalogAnalyticsPayload asks for the sales counters of a paid order's
// products to be bumped
type CatalogAnalyticsPayload struct {
	OrderID uuid.UUID `json:"order_id"`
}

// SettlementSweepPayload bounds one sweep run
type SettlementSweepPayload struct {
	Limit int `json:"limit"`
}
