package models

// Product is a catalog entry. The catalog service owns it; the ledger only
// snapshots its price at checkout and bumps the sales counters.
type Product struct {
	Base
	Name      string  `gorm:"type:varchar(255);not null" json:"name"`
	Price     float64 `gorm:"type:decimal(20,2);not null" json:"price"`
	Active    bool    `gorm:"not null;default:true" json:"active"`
	SoldCount int     `gorm:"not null;default:0" json:"sold_count"`
	Revenue   float64 `gorm:"type:decimal(20,2);not null;default:0" json:"revenue"`
	// FulfillmentInstructions are copied onto each order line
	FulfillmentInstructions string `gorm:"type:text" json:"fulfillment_instructions,omitempty"`
}
