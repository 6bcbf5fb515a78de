package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func TestSignMatchesHMAC(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("GET1700000000/v2/positions"))
	want := hex.EncodeToString(mac.Sum(nil))
	if got := Sign("secret", "GET", "1700000000", "/v2/positions", ""); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSignDeterministic(t *testing.T) {
	a := Sign("secret", "POST", "1700000000", "/v2/orders", `{"size":1}`)
	b := Sign("secret", "POST", "1700000000", "/v2/orders", `{"size":1}`)
	if a != b {
		t.Fatalf("expected identical signatures, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestSignChangesWithEachInput(t *testing.T) {
	base := Sign("secret", "POST", "1700000000", "/v2/orders", `{"size":1}`)
	variants := map[string]string{
		"secret":    Sign("other", "POST", "1700000000", "/v2/orders", `{"size":1}`),
		"method":    Sign("secret", "GET", "1700000000", "/v2/orders", `{"size":1}`),
		"timestamp": Sign("secret", "POST", "1700000001", "/v2/orders", `{"size":1}`),
		"path":      Sign("secret", "POST", "1700000000", "/v2/positions", `{"size":1}`),
		"body":      Sign("secret", "POST", "1700000000", "/v2/orders", `{"size":2}`),
	}
	for name, sig := range variants {
		if sig == base {
			t.Fatalf("changing %s did not change the signature", name)
		}
	}
}

func TestSignIsCaseSensitiveInMethod(t *testing.T) {
	if Sign("s", "get", "1", "/p", "") == Sign("s", "GET", "1", "/p", "") {
		t.Fatalf("expected method case to change the signature")
	}
}

func TestTimestampSeconds(t *testing.T) {
	ts := time.Unix(1700000000, 999_000_000)
	if got := Timestamp(ts); got != "1700000000" {
		t.Fatalf("expected 1700000000, got %s", got)
	}
}
