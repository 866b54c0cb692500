package encryption

import (
	"encoding/base64"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	enc, key, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if key == "" {
		t.Fatal("expected generated key to be returned")
	}

	ct, err := enc.Encrypt("spotify-client-secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := enc.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt != "spotify-client-secret" {
		t.Errorf("round trip = %q", pt)
	}
}

func TestKeyReuse(t *testing.T) {
	enc1, key, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	ct, err := enc1.Encrypt("value")
	if err != nil {
		t.Fatal(err)
	}

	enc2, _, err := New(key)
	if err != nil {
		t.Fatalf("New with existing key: %v", err)
	}
	pt, err := enc2.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt with reloaded key: %v", err)
	}
	if pt != "value" {
		t.Errorf("got %q", pt)
	}
}

func TestBadKeyLength(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, _, err := New(short); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestDecryptGarbage(t *testing.T) {
	enc, _, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Decrypt("not base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("xx"))); err == nil {
		t.Error("expected error for truncated ciphertext")
	}
}
