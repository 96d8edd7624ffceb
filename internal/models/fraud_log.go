package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FraudLogType classifies a fraud log entry
type FraudLogType string

const (
	FraudLogCodeUsage         FraudLogType = "code_usage"
	FraudLogSelfUse           FraudLogType = "self_use"
	FraudLogRapidRepeat       FraudLogType = "rapid_repeat"
	FraudLogSuspiciousPattern FraudLogType = "suspicious_pattern"
)

// FraudLogEntry is an append-only observation about referral code usage.
// Rows past ExpiresAt are removed by the purge job.
type FraudLogEntry struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ReferralCode string       `gorm:"type:varchar(32);not null;index:idx_fraud_code_ip,priority:1;index:idx_fraud_code_email,priority:1" json:"referral_code"`
	Type         FraudLogType `gorm:"type:varchar(32);not null;index:idx_fraud_code_ip,priority:2;index:idx_fraud_code_email,priority:2" json:"type"`
	IPAddress    string       `gorm:"type:varchar(64);index:idx_fraud_code_ip,priority:3" json:"ip_address,omitempty"`
	Email        string       `gorm:"type:varchar(255);index:idx_fraud_code_email,priority:3" json:"email,omitempty"`
	BuyerID      string       `gorm:"type:varchar(64)" json:"buyer_id,omitempty"`
	Detail       string       `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt    time.Time    `gorm:"index:idx_fraud_code_ip,priority:4" json:"created_at"`
	ExpiresAt    time.Time    `gorm:"index" json:"expires_at"`
}

// TableName keeps the table short
func (FraudLogEntry) TableName() string {
	return "fraud_logs"
}

// BeforeCreate assigns the entry id
func (f *FraudLogEntry) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
