package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123", "Worker@Example.com")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("secret123", "worker@example.com", hash) {
		t.Error("fresh hash did not verify")
	}
	if !CheckPassword("secret123", " Worker@Example.COM ", hash) {
		t.Error("email normalization not applied on verify")
	}
	if CheckPassword("wrong", "worker@example.com", hash) {
		t.Error("wrong password verified")
	}
	if CheckPassword("secret123", "other@example.com", hash) {
		t.Error("hash bound to a different email verified")
	}
}

func TestCheckPasswordLegacySHA256(t *testing.T) {
	sum := sha256.Sum256([]byte("secret123" + "worker@example.com"))
	stored := hex.EncodeToString(sum[:])

	if !CheckPassword("secret123", "Worker@Example.com", stored) {
		t.Error("legacy sha256 hash did not verify")
	}
	if CheckPassword("wrong", "worker@example.com", stored) {
		t.Error("wrong password verified against legacy hash")
	}
}

func TestCheckPasswordPlaintextFallback(t *testing.T) {
	if !CheckPassword("letmein", "worker@example.com", "letmein") {
		t.Error("pre-hash plaintext did not verify")
	}
	if CheckPassword("other", "worker@example.com", "letmein") {
		t.Error("wrong plaintext verified")
	}
	if CheckPassword("", "worker@example.com", "") {
		t.Error("empty stored value verified")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	JwtSecret = []byte("test-secret")

	token, err := GenerateJWT("worker@example.com", "Worker", "Store", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.Email != "worker@example.com" || claims.Name != "Worker" || claims.Role != "Store" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	JwtSecret = []byte("secret-a")
	token, err := GenerateJWT("worker@example.com", "Worker", "Store", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	JwtSecret = []byte("secret-b")
	if _, err := ParseJWT(token); err == nil {
		t.Error("token signed with a different secret parsed")
	}
}
