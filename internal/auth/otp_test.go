package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTPCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateOTPCode()
		require.NoError(t, err)
		assert.True(t, pattern.MatchString(code), "code %q is not 6 digits", code)
	}
}

func TestHashCode_DeterministicAndDistinct(t *testing.T) {
	a := HashCode("482193")
	b := HashCode("482193")
	c := HashCode("482194")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex sha256
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual(HashCode("123456"), HashCode("123456")))
	assert.False(t, ConstantTimeEqual(HashCode("123456"), HashCode("654321")))
	assert.False(t, ConstantTimeEqual("", HashCode("123456")))
}

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	pattern := regexp.MustCompile(`^[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{12}$`)
	seen := make(map[string]bool)
	for _, code := range codes {
		assert.True(t, pattern.MatchString(code), "code %q uses characters outside the charset", code)
		assert.False(t, seen[code], "duplicate recovery code generated")
		seen[code] = true
	}
}

func TestGenerateResetToken_Opaque(t *testing.T) {
	a, err := GenerateResetToken()
	require.NoError(t, err)
	b, err := GenerateResetToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 43) // 32 bytes base64url
}
