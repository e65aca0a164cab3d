// Package envelope implements the request envelope: an RSA wrapped AES key
// plus an AES-CBC encrypted payload whose ciphertext is pinned by a SHA-256
// content hash.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

var (
	ErrKeyUnwrap      = errors.New("envelope: key unwrap failed")
	ErrIntegrity      = errors.New("envelope: content hash mismatch")
	ErrPayloadDecrypt = errors.New("envelope: payload decrypt failed")
)

// Envelope is the encrypted part of a submission.
type Envelope struct {
	Content     string
	WrappedKey  string
	ContentHash string
}

// Codec holds the process-wide private key.
type Codec struct {
	priv *rsa.PrivateKey
}

// NewCodec returns a codec bound to priv.
func NewCodec(priv *rsa.PrivateKey) (*Codec, error) {
	if priv == nil {
		return nil, errors.New("envelope: private key is required")
	}
	return &Codec{priv: priv}, nil
}

// PublicKey returns the public half of the codec key.
func (c *Codec) PublicKey() *rsa.PublicKey {
	return &c.priv.PublicKey
}

// PublicKeyPEM encodes the public key as a PKIX PEM block.
func (c *Codec) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&c.priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// Open verifies the content hash, unwraps the AES key and decrypts the
// payload, in that order. It returns the plaintext and the AES key.
func (c *Codec) Open(env Envelope) ([]byte, []byte, error) {
	if err := VerifyContentHash(env.Content, env.ContentHash); err != nil {
		return nil, nil, err
	}
	key, err := c.UnwrapKey(env.WrappedKey)
	if err != nil {
		return nil, nil, err
	}
	plain, err := Decrypt(env.Content, key)
	if err != nil {
		return nil, nil, err
	}
	return plain, key, nil
}

// UnwrapKey decrypts a base64 RSA-OAEP(SHA-256) wrapped AES key.
func (c *Codec) UnwrapKey(wrappedB64 string) ([]byte, error) {
	wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrKeyUnwrap, err)
	}
	key, err := rsa.DecryptOAEP(sha256.New(), nil, c.priv, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnwrap, err)
	}
	if !validKeySize(len(key)) {
		return nil, fmt.Errorf("%w: unexpected key size %d", ErrKeyUnwrap, len(key))
	}
	return key, nil
}

// WrapKey is the client side of UnwrapKey.
func WrapKey(pub *rsa.PublicKey, key []byte) (string, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return "", fmt.Errorf("envelope: wrap key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// ContentHash returns the hex SHA-256 of the ciphertext string as received.
func ContentHash(ciphertextB64 string) string {
	sum := sha256.Sum256([]byte(ciphertextB64))
	return hex.EncodeToString(sum[:])
}

// VerifyContentHash checks claimed against the hash of the ciphertext. It
// detects transport corruption; it does not authenticate the plaintext.
func VerifyContentHash(ciphertextB64, claimed string) error {
	if ContentHash(ciphertextB64) != claimed {
		return ErrIntegrity
	}
	return nil
}

// Decrypt reverses Encrypt: base64(IV || AES-CBC(PKCS#7(plain))).
func Decrypt(ciphertextB64 string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPayloadDecrypt, err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecrypt, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: invalid ciphertext size %d", ErrPayloadDecrypt, len(raw))
	}
	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecrypt, err)
	}
	return plain, nil
}

// Encrypt seals plain under key with a fresh random IV.
func Encrypt(plain, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("envelope: encrypt: %w", err)
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("envelope: generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

func validKeySize(n int) bool {
	return n == 16 || n == 24 || n == 32
}
