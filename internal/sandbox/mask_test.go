// File: internal/sandbox/mask_test.go
package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSensitiveField(t *testing.T) {
	sensitive := []string{
		"password", "PASSWORD", "user_password", "passwd",
		"secret", "client_secret", "token", "csrf_token",
		"api_key", "api-key", "apikey", "credential",
		"key", "encryption_key", "ssh-key", "session_key",
		"auth_header", "ssn", "cvv", "cvc", "card_pin",
	}
	for _, id := range sensitive {
		assert.True(t, IsSensitiveField(id), "%q should be sensitive", id)
	}

	benign := []string{"username", "email", "search", "q", "address", "text", ""}
	for _, id := range benign {
		assert.False(t, IsSensitiveField(id), "%q should not be sensitive", id)
	}

	t.Run("any sensitive identifier wins", func(t *testing.T) {
		assert.True(t, IsSensitiveField("login-field", "password"))
	})
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, Masked, MaskValue("hunter2", "password"))
	assert.Equal(t, "alice", MaskValue("alice", "username"))

	// Empty values pass through so callers can tell empty from hidden.
	assert.Equal(t, "", MaskValue("", "password"))
}

func TestMaskText(t *testing.T) {
	assert.Equal(t, Masked, MaskText("input#password", "hunter2"))
	assert.Equal(t, "quarterly report", MaskText("input#search", "quarterly report"))
}
