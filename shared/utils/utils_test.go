package utils

import (
	"strings"
	"testing"
)

func TestGenerateAccountNumber(t *testing.T) {
	for i := 0; i < 50; i++ {
		n := GenerateAccountNumber()
		if !ValidateAccountNumber(n) {
			t.Fatalf("generated invalid account number %q", n)
		}
	}
}

func TestValidateAccountNumber(t *testing.T) {
	tests := map[string]bool{
		"01234567":  true,
		"02234567":  false,
		"0123456":   false,
		"0123456a":  false,
		"012345678": false,
	}
	for in, want := range tests {
		if got := ValidateAccountNumber(in); got != want {
			t.Errorf("ValidateAccountNumber(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIDs(t *testing.T) {
	if id := GenerateID("usr"); !ValidateUserID(id) || len(id) != len("usr-")+10 {
		t.Fatalf("unexpected user id %q", id)
	}
	if id := NewTransactionID(); !ValidateTransactionID(id) {
		t.Fatalf("unexpected transaction id %q", id)
	}
	if ValidateTransactionID("tan-123") {
		t.Fatal("legacy ids are not transaction ids")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if strings.Contains(hash, "correct horse") {
		t.Fatal("hash contains the password")
	}
	if !CheckPassword("correct horse", hash) || CheckPassword("wrong", hash) {
		t.Fatal("password check mismatch")
	}
}
