package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken(7, "user-42", "staff", "secret", time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	claims, err := Parse(token, "secret")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if claims.Sub != 7 || claims.Username != "user-42" || claims.Role != "staff" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _ := NewAccessToken(7, "user-42", "staff", "secret", time.Hour)

	if _, err := Parse(token, "other-secret"); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, _ := NewAccessToken(7, "user-42", "staff", "secret", -time.Minute)

	if _, err := Parse(token, "secret"); err == nil {
		t.Error("expected error for expired token")
	}
}
