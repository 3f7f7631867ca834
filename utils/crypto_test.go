package utils

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0x7a1f3c9e2b44d8a0c5e6f7182930a4b5c6d7e8f90123456789abcdef01234567"

func TestDecryptReturnsPlaintextUnchanged(t *testing.T) {
	c := NewFieldCipher("pepper")
	for _, v := range []string{"", "alice", "bob_99", "carol@mail.io"} {
		assert.Equal(t, v, c.Decrypt(v, testAddr))
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := NewFieldCipher("pepper")
	for _, plain := range []string{"alice", "alice@example.com", "Zoë Ünïcode", strings.Repeat("x", 64)} {
		enc, err := c.Encrypt(plain, testAddr)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(enc, saltedMarker))
		assert.Equal(t, plain, c.Decrypt(enc, testAddr))
	}
}

func TestDecryptAddressCaseInsensitive(t *testing.T) {
	c := NewFieldCipher("pepper")
	enc, err := c.Encrypt("alice", strings.ToUpper(testAddr))
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Decrypt(enc, testAddr))
}

func TestDecryptWrongKeyReturnsInput(t *testing.T) {
	enc, err := NewFieldCipher("pepper").Encrypt("alice", testAddr)
	require.NoError(t, err)

	other := NewFieldCipher("salt")
	got := other.Decrypt(enc, testAddr)
	// a wrong key almost always breaks the padding; if it happens to unpad,
	// the result must still not be the original plaintext
	assert.NotEqual(t, "alice", got)
	_, strictErr := other.DecryptStrict(enc, "0xdeadbeef")
	assert.Error(t, strictErr)
}

func TestDecryptCorruptedReturnsInput(t *testing.T) {
	c := NewFieldCipher("pepper")
	enc, err := c.Encrypt("alice@example.com", testAddr)
	require.NoError(t, err)

	cases := []string{
		enc[:len(enc)-6],                   // truncated
		"U2FsdGVkX1!!not-base64!!",         // marker but garbage
		"dGhpcyBpcyBub3QgYW4gZW52ZWxvcGU=", // valid base64, no header
		strings.Repeat("A", 40),            // long, plain-looking
	}
	raw, _ := base64.StdEncoding.DecodeString(enc)
	raw[len(raw)-1] ^= 0xff
	cases = append(cases, base64.StdEncoding.EncodeToString(raw))

	for _, v := range cases {
		assert.NotPanics(t, func() { c.Decrypt(v, testAddr) })
		assert.Equal(t, v, c.Decrypt(v, testAddr))
	}
}

func TestLooksEncrypted(t *testing.T) {
	assert.False(t, LooksEncrypted("alice"))
	assert.True(t, LooksEncrypted("abc="))
	assert.True(t, LooksEncrypted("U2FsdGVkX1abc"))
	assert.True(t, LooksEncrypted(strings.Repeat("a", 20)))
}

func TestHashIdentifier(t *testing.T) {
	assert.Equal(t, "", HashIdentifier("  "))
	assert.Len(t, HashIdentifier("203.0.113.10"), 64)
	assert.Equal(t, HashIdentifier("ua"), HashIdentifier(" ua "))
}

func TestDecryptStrictRejectsInvalidUTF8(t *testing.T) {
	c := NewFieldCipher("pepper")
	enc, err := c.Encrypt("\xff\xfeok", testAddr)
	require.NoError(t, err)

	_, err = c.DecryptStrict(enc, testAddr)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.NotErrorIs(t, err, ErrBadPadding)
	assert.Equal(t, enc, c.Decrypt(enc, testAddr))
}
