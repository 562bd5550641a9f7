package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrSignatureMismatch is returned for any signature that fails
// verification. Callers must treat it as a hard rejection.
var ErrSignatureMismatch = errors.New("signature mismatch")

func computeHMAC(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks the HMAC-SHA256 hex signature supplied in
// a provider webhook header against the raw request body.
func VerifyWebhookSignature(payload []byte, signature, secret string) error {
	if secret == "" {
		return errors.New("webhook secret not configured")
	}
	expected := computeHMAC(payload, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyPaymentSignature checks the client-supplied confirmation
// signature, computed by the provider as HMAC-SHA256 over
// "<orderID>|<paymentID>".
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) error {
	expected := computeHMAC([]byte(orderID+"|"+paymentID), secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// SignPayload produces the signature VerifyWebhookSignature accepts.
// Exposed for tests and for signing outbound callbacks.
func SignPayload(payload []byte, secret string) string {
	return computeHMAC(payload, secret)
}
