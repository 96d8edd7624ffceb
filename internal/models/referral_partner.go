package models

import "time"

// PartnerStatus controls whether a partner's code is usable and payable
type PartnerStatus string

const (
	PartnerStatusActive PartnerStatus = "active"
	PartnerStatusPaused PartnerStatus = "paused"
	PartnerStatusBanned PartnerStatus = "banned"
)

// Valid reports whether s is a known status
func (s PartnerStatus) Valid() bool {
	switch s {
	case PartnerStatusActive, PartnerStatusPaused, PartnerStatusBanned:
		return true
	}
	return false
}

// ReferralPartner is a creator account identified by a referral code.
// Counters are only ever changed through guarded increments in the repository.
type ReferralPartner struct {
	Base
	UserID       string `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`
	DisplayName  string `gorm:"type:varchar(120)" json:"display_name"`
	Email        string `gorm:"type:varchar(255)" json:"email"`
	ReferralCode string `gorm:"type:varchar(32);uniqueIndex;not null" json:"referral_code"`

	DiscountPercent   float64 `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percent"`
	CommissionPercent float64 `gorm:"type:decimal(5,2);not null;default:0" json:"commission_percent"`

	TotalUses             int     `gorm:"not null;default:0" json:"total_uses"`
	TotalRevenueGenerated float64 `gorm:"type:decimal(20,2);not null;default:0" json:"total_revenue_generated"`
	TotalCommissionEarned float64 `gorm:"type:decimal(20,2);not null;default:0" json:"total_commission_earned"`
	PendingCommission     float64 `gorm:"type:decimal(20,2);not null;default:0" json:"pending_commission"`
	TotalPaidOut          float64 `gorm:"type:decimal(20,2);not null;default:0" json:"total_paid_out"`

	MaxUses   *int       `json:"max_uses,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// PayoutThreshold is a legacy per-partner override. Payout requests use the global setting.
	PayoutThreshold *float64      `gorm:"type:decimal(20,2)" json:"payout_threshold,omitempty"`
	Status          PartnerStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
}

// CapReached reports whether the usage cap is exhausted as of this snapshot
func (p *ReferralPartner) CapReached() bool {
	return p.MaxUses != nil && p.TotalUses >= *p.MaxUses
}

// Expired reports whether the code expired before now
func (p *ReferralPartner) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

