package kinship

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agenthands/kindred/internal/apperror"
)

func TestCheckCredential(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"secret123", true},
		{"pässwörd1", true},
		{"short1", false},
		{"lettersonly", false},
		{"1234567890", false},
		{"ééééééé1", false},
		{"abcdefg１", false},
		{strings.Repeat("a1", 37), false},
	}
	for _, tt := range tests {
		err := CheckCredential(tt.password)
		if tt.ok {
			assert.NoError(t, err, tt.password)
			continue
		}
		assert.Equal(t, apperror.KindWeakPassword, apperror.KindOf(err), tt.password)
	}
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret123")))
}
