package aead

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveKey(12345)
	aadStr := []byte("engine-aad")
	plaintext := []byte("Forensics 1\x005")

	payload, err := Seal(key, aadStr, plaintext)
	require.NoError(t, err)

	got, ok := Open(key, aadStr, payload)
	require.True(t, ok)
	require.Equal(t, plaintext, got)
}

// P8: mutating any byte of the ciphertext or the configured AAD
// produces an authentication failure, not garbage plaintext.
func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := DeriveKey(1)
	aadStr := []byte("aad")
	payload, err := Seal(key, aadStr, []byte("secret"))
	require.NoError(t, err)

	tampered := append(Payload(nil), payload...)
	tampered[len(tampered)-1] ^= 0xFF

	_, ok := Open(key, aadStr, tampered)
	require.False(t, ok)
}

func TestOpenRejectsWrongAAD(t *testing.T) {
	key := DeriveKey(1)
	payload, err := Seal(key, []byte("aad-a"), []byte("secret"))
	require.NoError(t, err)

	_, ok := Open(key, []byte("aad-b"), payload)
	require.False(t, ok)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	require.Equal(t, DeriveKey(42), DeriveKey(42))
	require.NotEqual(t, DeriveKey(42), DeriveKey(43))
}
