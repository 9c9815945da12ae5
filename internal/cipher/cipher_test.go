package cipher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAEADCipherRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := NewAEADCipher(key)
	require.NoError(t, err)
	ctx := context.Background()

	ciphertext, err := c.Encrypt(ctx, "super secret value")
	require.NoError(t, err)
	assert.NotEqual(t, "super secret value", ciphertext)
	assert.True(t, c.IsEncrypted(ciphertext))

	plaintext, err := c.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "super secret value", plaintext)
}

func TestAEADCipherEmptyStringIsNoop(t *testing.T) {
	key := make([]byte, 32)
	c, _ := NewAEADCipher(key)
	ctx := context.Background()

	ct, err := c.Encrypt(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ct)

	pt, err := c.Decrypt(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestAEADCipherDecryptPlaintextPassthrough(t *testing.T) {
	key := make([]byte, 32)
	c, _ := NewAEADCipher(key)
	ctx := context.Background()

	// A legacy unencrypted row has no enc:v1: prefix and should be
	// returned unchanged rather than failing to decrypt.
	got, err := c.Decrypt(ctx, "legacy plaintext")
	require.NoError(t, err)
	assert.Equal(t, "legacy plaintext", got)
}

func TestNewAEADCipherRejectsBadKeySize(t *testing.T) {
	_, err := NewAEADCipher([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestNoopCipher(t *testing.T) {
	var c NoopCipher
	ctx := context.Background()
	got, err := c.Encrypt(ctx, "value")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
	assert.False(t, c.IsEncrypted("value"))
}
