package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const SignatureHeader = "X-Gateway-Signature"

var ErrBadSignature = errors.New("gateway: invalid webhook signature")

// PaymentConfirmed is the body of the onPaymentConfirmed webhook. Amount is a
// major-unit decimal string, e.g. "25.00".
type PaymentConfirmed struct {
	GatewayRef string `json:"gatewayRef" validate:"required,max=128"`
	Amount     string `json:"amount" validate:"required,max=32"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
	Status     string `json:"status" validate:"required,oneof=succeeded failed"`
}

// TransferEvent is the body of onTransferCompleted / onTransferFailed.
type TransferEvent struct {
	TransferRef string         `json:"transferRef" validate:"required,max=128"`
	Status      TransferStatus `json:"status" validate:"required,oneof=completed failed"`
	Reason      string         `json:"reason,omitempty" validate:"max=256"`
}

// Sign computes the hex HMAC-SHA256 of a webhook body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "sha256=<hex>" or bare hex signature in constant time.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" || signature == "" {
		return ErrBadSignature
	}
	signature = strings.TrimPrefix(signature, "sha256=")
	given, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	expected, _ := hex.DecodeString(Sign(secret, body))
	if !hmac.Equal(given, expected) {
		return ErrBadSignature
	}
	return nil
}
