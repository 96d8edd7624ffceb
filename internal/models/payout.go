package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayoutStatus is the state of a payout request
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusRejected   PayoutStatus = "rejected"
)

// OpenPayoutStatuses are the non-terminal states
var OpenPayoutStatuses = []PayoutStatus{PayoutStatusPending, PayoutStatusProcessing}

// IsOpen reports whether the status is non-terminal
func (s PayoutStatus) IsOpen() bool {
	return s == PayoutStatusPending || s == PayoutStatusProcessing
}

// PayoutMethod is how the partner wants to be paid
type PayoutMethod string

const (
	PayoutMethodBank PayoutMethod = "bank"
	PayoutMethodUPI  PayoutMethod = "upi"
	PayoutMethodQR   PayoutMethod = "qr"
)

// PayoutRequest is one creator-initiated withdrawal of pending commission.
// At most one request per partner may be pending or processing; the partial
// unique index idx_payout_open_partner backs the advisory lookup.
type PayoutRequest struct {
	Base
	PartnerID       uuid.UUID    `gorm:"type:uuid;not null;index:idx_payout_partner_status,priority:1" json:"partner_id"`
	RealName        string       `gorm:"type:varchar(120);not null" json:"real_name"`
	Amount          float64      `gorm:"type:decimal(20,2);not null" json:"amount"`
	Method          PayoutMethod `gorm:"type:varchar(10);not null" json:"method"`
	Details         JSON         `gorm:"type:jsonb" json:"details"`
	Status          PayoutStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_payout_partner_status,priority:2" json:"status"`
	TransactionRef  string       `gorm:"type:varchar(100)" json:"transaction_ref,omitempty"`
	RejectionReason string       `gorm:"type:text" json:"rejection_reason,omitempty"`
	RequestedAt     time.Time    `json:"requested_at"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
}

// PayoutHistory is an immutable record of money that left the ledger
type PayoutHistory struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	PartnerID       uuid.UUID    `gorm:"type:uuid;index;not null" json:"partner_id"`
	PayoutRequestID *uuid.UUID   `gorm:"type:uuid;index" json:"payout_request_id,omitempty"`
	Amount          float64      `gorm:"type:decimal(20,2);not null" json:"amount"`
	Method          PayoutMethod `gorm:"type:varchar(10);not null" json:"method"`
	TransactionRef  string       `gorm:"type:varchar(100);not null" json:"transaction_ref"`
	Note            string       `gorm:"type:text" json:"note,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// BeforeCreate assigns the history id
func (h *PayoutHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
