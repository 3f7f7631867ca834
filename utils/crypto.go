// utils/crypto.go
package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	saltedHeader = "Salted__"
	// base64 of "Salted__", the prefix every envelope starts with
	saltedMarker = "U2FsdGVkX1"
	// shorter values without a marker or padding are treated as legacy plaintext
	minCiphertextLen = 20
)

var (
	ErrNotEnvelope    = errors.New("value is not a salted AES envelope")
	ErrBadPadding     = errors.New("invalid PKCS#7 padding")
	ErrEmptyPlaintext = errors.New("decrypted to empty plaintext")
	ErrInvalidUTF8    = errors.New("decrypted plaintext is not valid UTF-8")
)

// FieldCipher encrypts and decrypts per-user PII fields. The key for a field
// is derived from the owning wallet address plus the application secret, and
// the wire format is the OpenSSL "Salted__" AES-256-CBC envelope in base64.
type FieldCipher struct {
	secret string
}

func NewFieldCipher(secret string) *FieldCipher {
	return &FieldCipher{secret: secret}
}

// passphrase = hex(SHA256(address + secret))
func (c *FieldCipher) passphrase(address string) []byte {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(address)) + c.secret))
	return []byte(hex.EncodeToString(sum[:]))
}

// LooksEncrypted is the legacy heuristic used to tell ciphertext from plaintext
func LooksEncrypted(value string) bool {
	return strings.HasPrefix(value, saltedMarker) ||
		strings.Contains(value, "=") ||
		len(value) >= minCiphertextLen
}

// Decrypt never fails: plaintext-looking values and anything that cannot be
// decrypted come back unchanged.
func (c *FieldCipher) Decrypt(value, address string) string {
	if value == "" || !LooksEncrypted(value) {
		return value
	}
	plain, err := c.DecryptStrict(value, address)
	if err != nil {
		return value
	}
	return plain
}

// DecryptStrict returns an error instead of falling back to the input
func (c *FieldCipher) DecryptStrict(value, address string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if len(raw) < len(saltedHeader)+8+aes.BlockSize || !bytes.HasPrefix(raw, []byte(saltedHeader)) {
		return "", ErrNotEnvelope
	}
	salt := raw[len(saltedHeader) : len(saltedHeader)+8]
	data := raw[len(saltedHeader)+8:]
	if len(data)%aes.BlockSize != 0 {
		return "", ErrNotEnvelope
	}

	key, iv := evpBytesToKey(c.passphrase(address), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	out, err = pkcs7Unpad(out)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", ErrEmptyPlaintext
	}
	if !utf8.Valid(out) {
		return "", ErrInvalidUTF8
	}
	return string(out), nil
}

// Encrypt produces an envelope Decrypt accepts for the same address
func (c *FieldCipher) Encrypt(plain, address string) (string, error) {
	salt := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key, iv := evpBytesToKey(c.passphrase(address), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	data := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)

	buf := make([]byte, 0, len(saltedHeader)+len(salt)+len(out))
	buf = append(buf, saltedHeader...)
	buf = append(buf, salt...)
	buf = append(buf, out...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// evpBytesToKey is OpenSSL's MD5-based KDF with one iteration (32-byte key, 16-byte IV)
func evpBytesToKey(pass, salt []byte) ([]byte, []byte) {
	var derived, prev []byte
	for len(derived) < 48 {
		h := md5.New()
		h.Write(prev)
		h.Write(pass)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:32], derived[32:48]
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}

// HashIdentifier hashes visitor identifiers (IP, user agent) before storage
func HashIdentifier(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
