package token

import (
	"testing"
)

func TestCacheSetGet(t *testing.T) {
	var c Cache
	if _, err := c.Get(); err != ErrMissing {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if !c.Set("tok-123") {
		t.Fatal("expected token to be stored")
	}
	got, err := c.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "tok-123" {
		t.Fatalf("unexpected token %q", got)
	}
}

func TestCacheRevokeIsPermanent(t *testing.T) {
	var c Cache
	c.Set("tok")
	c.Revoke()
	if _, err := c.Get(); err != ErrRevoked {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	if c.Set("another") {
		t.Fatal("revoked cache accepted a new token")
	}
	if !c.Revoked() {
		t.Fatal("expected Revoked() to be true")
	}
}

func TestCacheIgnoresEmpty(t *testing.T) {
	var c Cache
	if c.Set("") {
		t.Fatal("empty token should not be stored")
	}
	if c.Age() != 0 {
		t.Fatal("age should be zero without a token")
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("abcdefgh"); got != "abcd****" {
		t.Fatalf("unexpected redaction %q", got)
	}
	if got := Redact("ab"); got != "****" {
		t.Fatalf("unexpected redaction %q", got)
	}
}
