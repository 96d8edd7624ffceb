package utils

import (
	"fmt"
	"strings"
)

// FormatCurrency renders an amount with its currency symbol
func FormatCurrency(amount float64, currency string) string {
	switch strings.ToUpper(currency) {
	case "INR":
		return fmt.Sprintf("₹%.2f", amount)
	case "USD":
		return fmt.Sprintf("$%.2f", amount)
	case "EUR":
		return fmt.Sprintf("€%.2f", amount)
	case "GBP":
		return fmt.Sprintf("£%.2f", amount)
	default:
		return fmt.Sprintf("%.2f %s", amount, currency)
	}
}

// MaskEmail keeps the first character and the domain, for logs
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
