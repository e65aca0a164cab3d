package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoadPrivateKeyPEM parses a PKCS#1 or PKCS#8 RSA private key.
func LoadPrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("envelope: no PEM block found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("envelope: parse pkcs1 key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("envelope: parse pkcs8 key: %w", err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("envelope: unsupported key type %T", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("envelope: unsupported PEM block %q", block.Type)
	}
}

// LoadPrivateKey resolves the key from inline PEM or a file path. Inline
// values may carry literal "\n" sequences as written in .env files.
func LoadPrivateKey(inline, path string) (*rsa.PrivateKey, error) {
	inline = strings.TrimSpace(inline)
	if inline != "" {
		return LoadPrivateKeyPEM([]byte(strings.ReplaceAll(inline, `\n`, "\n")))
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("envelope: private key is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("envelope: read private key: %w", err)
	}
	return LoadPrivateKeyPEM(data)
}

// GenerateKeyPair returns a new private key and its PEM encodings.
func GenerateKeyPair(bits int) (privPEM, pubPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("envelope: generate key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("envelope: marshal private key: %w", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	codec := &Codec{priv: key}
	pubPEM, err = codec.PublicKeyPEM()
	if err != nil {
		return nil, nil, err
	}
	return privPEM, pubPEM, nil
}
