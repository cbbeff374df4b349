package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature(t *testing.T) {
	secret := []byte("test-secret")

	sig := Signature(secret, "order_123", "pay_456")
	require.NotEmpty(t, sig)
	assert.Len(t, sig, 64) // hex-encoded SHA-256

	// Deterministic for the same inputs.
	assert.Equal(t, sig, Signature(secret, "order_123", "pay_456"))

	// Any changed input yields a different signature.
	assert.NotEqual(t, sig, Signature(secret, "order_124", "pay_456"))
	assert.NotEqual(t, sig, Signature(secret, "order_123", "pay_457"))
	assert.NotEqual(t, sig, Signature([]byte("other-secret"), "order_123", "pay_456"))
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("test-secret")
	sig := Signature(secret, "order_123", "pay_456")

	assert.True(t, VerifySignature(secret, "order_123", "pay_456", sig))

	// Tampered payment id.
	assert.False(t, VerifySignature(secret, "order_123", "pay_457", sig))
	// Tampered signature.
	assert.False(t, VerifySignature(secret, "order_123", "pay_456", sig[:63]+"0"))
	// Wrong secret.
	assert.False(t, VerifySignature([]byte("other"), "order_123", "pay_456", sig))
	// Empty signature.
	assert.False(t, VerifySignature(secret, "order_123", "pay_456", ""))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := []byte("webhook-secret")
	body := []byte(`{"event":"payment.captured"}`)

	sig := WebhookSignature(secret, body)
	assert.True(t, VerifyWebhookSignature(secret, body, sig))

	// A single changed byte in the body invalidates the signature.
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = 'x'
	assert.False(t, VerifyWebhookSignature(secret, tampered, sig))

	// Callback and webhook secrets are independent.
	assert.False(t, VerifyWebhookSignature([]byte("test-secret"), body, sig))
}
