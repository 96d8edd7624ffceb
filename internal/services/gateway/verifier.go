// Package gateway talks to the payment gateway: it authenticates inbound
// webhooks and creates gateway orders at checkout.
package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/revaspay/settlement/internal/utils"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
const SignatureHeader = "signature"

// LegacySignatureHeader is read when SignatureHeader is absent
const LegacySignatureHeader = "X-Razorpay-Signature"

// EventIDHeader is the gateway's delivery id, when sent
const EventIDHeader = "X-Razorpay-Event-Id"

var (
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	ErrMissingSignature    = errors.New("missing webhook signature")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)

// Verifier authenticates webhook deliveries
type Verifier struct {
	secret string
}

// NewVerifier returns a verifier for the shared webhook secret. An empty
// secret is accepted here; every Verify call then fails.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// SignatureFrom returns the delivery's signature, preferring SignatureHeader
func SignatureFrom(h http.Header) string {
	if sig := h.Get(SignatureHeader); sig != "" {
		return sig
	}
	return h.Get(LegacySignatureHeader)
}

// Verify checks signature against the exact bytes received
func (v *Verifier) Verify(rawBody []byte, signature string) error {
	if v == nil || v.secret == "" {
		return ErrSecretNotConfigured
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	if !utils.VerifyHMAC(rawBody, signature, v.secret) {
		return ErrInvalidSignature
	}
	return nil
}
