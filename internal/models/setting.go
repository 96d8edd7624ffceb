package models

// Setting is a single mutable key/value pair
type Setting struct {
	Key       string `gorm:"type:varchar(64);primaryKey" json:"key"`
	Value     string `gorm:"type:text;not null" json:"value"`
	UpdatedAt int64  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SettingPayoutThreshold is the global minimum pending balance for a payout request
const SettingPayoutThreshold = "payout_threshold"
