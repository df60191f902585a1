// Package cryptotest provides RSA key material for tests that exercise the
// interbank signing scheme.
package cryptotest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/eaglebank/platform/shared/crypto"
)

// KeyPair bundles a private key with its public half in registration format.
type KeyPair struct {
	Private      *rsa.PrivateKey
	PrivatePEM   []byte
	PublicKeyPEM string
}

// NewKeyPair generates a fresh 2048-bit key pair or fails the test.
func NewKeyPair(t testing.TB) KeyPair {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	pub, err := crypto.EncodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		t.Fatalf("encode public key: %v", err)
	}
	return KeyPair{
		Private:      key,
		PrivatePEM:   pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}),
		PublicKeyPEM: pub,
	}
}
