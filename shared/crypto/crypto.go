// Package crypto implements the interbank request protection scheme: an
// HMAC-SHA256 integrity hash keyed by the shared secret of the two banks, and
// an RSA SHA-256 signature made with the sending bank's private key.
//
// Both sides must hash exactly the same bytes, so request bodies are never
// hashed as raw JSON. Callers build the canonical form with CanonicalDeposit
// or CanonicalAccountLookup.
package crypto

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/shopspring/decimal"
)

// DepositFields are the protocol fields of a deposit call, in canonical order.
type DepositFields struct {
	SenderAccountNumber   string
	ReceiverAccountNumber string
	Amount                decimal.Decimal
	Content               string
}

// CanonicalDeposit renders the deposit fields in the fixed order shared by all
// participating banks. Amounts always carry two decimals so "100" and "100.00"
// hash identically.
func CanonicalDeposit(f DepositFields) []byte {
	var b strings.Builder
	b.WriteString("senderAccountNumber=")
	b.WriteString(f.SenderAccountNumber)
	b.WriteString("&receiverAccountNumber=")
	b.WriteString(f.ReceiverAccountNumber)
	b.WriteString("&amount=")
	b.WriteString(f.Amount.StringFixed(2))
	b.WriteString("&content=")
	b.WriteString(f.Content)
	return []byte(b.String())
}

// CanonicalAccountLookup is the canonical body of an account-info request.
func CanonicalAccountLookup(accountNumber string) []byte {
	return []byte("accountNumber=" + accountNumber)
}

// ComputeHMAC returns base64(HMAC-SHA256(body || timestamp || bankCode || secret))
// keyed by secret.
func ComputeHMAC(body []byte, secret, timestamp, bankCode string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(bankCode))
	mac.Write([]byte(secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC recomputes the hash and compares it in constant time.
func VerifyHMAC(body []byte, received, secret, timestamp, bankCode string) error {
	expected := ComputeHMAC(body, secret, timestamp, bankCode)
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return bankerr.ErrIntegrity
	}
	return nil
}

// Sign produces a base64 SHA256withRSA (PKCS #1 v1.5) signature over body.
func Sign(body []byte, key *rsa.PrivateKey) (string, error) {
	if key == nil {
		return "", errors.New("signing key is not configured")
	}
	digest := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature over body with the PEM public key of the
// counterpart bank. Any failure, including a malformed key, is an
// authenticity error.
func Verify(body []byte, signature, publicKeyPEM string) error {
	pub, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return bankerr.Wrap(bankerr.KindAuthenticity, bankerr.ErrAuthenticity.Message, err)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return bankerr.Wrap(bankerr.KindAuthenticity, bankerr.ErrAuthenticity.Message, fmt.Errorf("decode signature: %w", err))
	}
	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return bankerr.Wrap(bankerr.KindAuthenticity, bankerr.ErrAuthenticity.Message, err)
	}
	return nil
}

// ParsePublicKeyPEM accepts an X.509 SubjectPublicKeyInfo ("PUBLIC KEY") or a
// PKCS #1 ("RSA PUBLIC KEY") block.
func ParsePublicKeyPEM(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, errors.New("public key is not PEM encoded")
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not RSA")
		}
		return pub, nil
	}
}

// ParsePrivateKeyPEM accepts PKCS #8 ("PRIVATE KEY") or PKCS #1
// ("RSA PRIVATE KEY") blocks.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("private key is not PEM encoded")
	}
	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

// EncodePublicKeyPEM renders pub as an X.509 "PUBLIC KEY" block, the format
// banks register with each other.
func EncodePublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
