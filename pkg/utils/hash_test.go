package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenMatches(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("upload-token"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name       string
		configured string
		presented  string
		want       bool
	}{
		{"plaintext match", "upload-token", "upload-token", true},
		{"plaintext mismatch", "upload-token", "upload-tokem", false},
		{"plaintext prefix", "upload-token", "upload", false},
		{"bcrypt match", string(hashed), "upload-token", true},
		{"bcrypt mismatch", string(hashed), "other", false},
		{"presenting the hash itself", string(hashed), string(hashed), false},
		{"nothing configured", "", "", false},
		{"empty presented", "upload-token", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenMatches(tt.configured, tt.presented))
		})
	}
}
