package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt("000123456", testKey)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "000123456")

	again, err := Encrypt("000123456", testKey)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := Decrypt(sealed, testKey)
	require.NoError(t, err)
	assert.Equal(t, "000123456", plain)
}

func TestDecryptRejectsTampering(t *testing.T) {
	sealed, err := Encrypt("000123456", testKey)
	require.NoError(t, err)

	tampered := []byte(sealed)
	if tampered[len(tampered)-1] == '0' {
		tampered[len(tampered)-1] = '1'
	} else {
		tampered[len(tampered)-1] = '0'
	}
	_, err = Decrypt(string(tampered), testKey)
	assert.Error(t, err)

	_, err = Decrypt("abcd", testKey)
	assert.Error(t, err)

	_, err = Decrypt("not-hex", testKey)
	assert.Error(t, err)
}

func TestEncryptRejectsBadInput(t *testing.T) {
	_, err := Encrypt("", testKey)
	assert.Error(t, err)

	_, err = Encrypt("123", []byte("short"))
	assert.Error(t, err)
}

func TestChequeFingerprint(t *testing.T) {
	a := ChequeFingerprint(" 00 12-34 ", "secret")
	b := ChequeFingerprint("001234", "secret")
	c := ChequeFingerprint("001234", "other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, b, c)
	assert.Len(t, a, 64)
}
