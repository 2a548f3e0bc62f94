package credstore

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	key := DeriveKey(testMaterial)
	require.Len(t, key, 32)
	require.Equal(t, key, DeriveKey(testMaterial), "same tuple must yield the same key")

	others := []KeyMaterial{
		{Machine: "other-host", User: testMaterial.User, Home: testMaterial.Home},
		{Machine: testMaterial.Machine, User: "bob", Home: testMaterial.Home},
		{Machine: testMaterial.Machine, User: testMaterial.User, Home: "/home/bob"},
	}
	for _, m := range others {
		require.NotEqual(t, key, DeriveKey(m), "tuple %+v", m)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key := DeriveKey(testMaterial)

	ciphertext, err := Encrypt(validToken, key)
	require.NoError(t, err)
	require.NotContains(t, ciphertext, validToken)

	_, err = base64.URLEncoding.DecodeString(ciphertext)
	require.NoError(t, err, "ciphertext must be URL-safe base64")

	got, ok := Decrypt(ciphertext, key)
	require.True(t, ok)
	require.Equal(t, validToken, got)

	again, err := Encrypt(validToken, key)
	require.NoError(t, err)
	require.NotEqual(t, ciphertext, again, "nonce must be random")
}

func TestDecryptFailures(t *testing.T) {
	key := DeriveKey(testMaterial)
	ciphertext, err := Encrypt(validToken, key)
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.URLEncoding.EncodeToString(raw)

	tests := []struct {
		name       string
		ciphertext string
		key        []byte
	}{
		{"different key", ciphertext, DeriveKey(KeyMaterial{Machine: "elsewhere"})},
		{"tampered", tampered, key},
		{"truncated", ciphertext[:8], key},
		{"not base64", "%%%not-base64%%%", key},
		{"empty", "", key},
		{"bad key length", ciphertext, []byte("short")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decrypt(tt.ciphertext, tt.key)
			require.False(t, ok)
			require.Empty(t, got)
		})
	}
}
