package session

import (
	"errors"
	"testing"
	"time"
)

func TestMintAndParse(t *testing.T) {
	m, err := NewTokenManager("secreto-de-prueba")
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	signed, sessionToken, err := m.Mint("u-1", "ana@aexfy.cl", []string{"Supervisor"}, "NG")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if sessionToken == "" {
		t.Fatal("expected session token")
	}
	claims, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "u-1" || claims.ID != sessionToken {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Zone != "NG" || len(claims.Roles) != 1 || claims.Roles[0] != "Supervisor" {
		t.Fatalf("snapshot claims not preserved: %+v", claims)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	a, _ := NewTokenManager("secreto-a")
	b, _ := NewTokenManager("secreto-b")
	signed, _, err := a.Mint("u-1", "", nil, "")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := b.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	m, _ := NewTokenManager("secreto", WithTTL(time.Hour), WithClock(func() time.Time { return past }))
	signed, _, err := m.Mint("u-1", "", nil, "")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	fresh, _ := NewTokenManager("secreto")
	if _, err := fresh.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	m, _ := NewTokenManager("secreto")
	if _, err := m.Parse(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("  "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
