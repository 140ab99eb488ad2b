package vault

import (
	"errors"
	"strings"
	"testing"
)

var testKey = []byte("thisis32byteslongsecretkey123456") // 32 bytes for AES-256

func TestSealOpen(t *testing.T) {
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	plaintext := "face-template:0.12,0.98,0.33"

	sealed, err := c.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if sealed == plaintext || !IsSealed(sealed) {
		t.Fatalf("Expected a sealed value, got %q", sealed)
	}

	again, _ := c.Seal(plaintext)
	if again == sealed {
		t.Error("Two seals of the same text should differ (random nonce)")
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != plaintext {
		t.Errorf("Expected %s, got %s", plaintext, opened)
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	c1, _ := NewCipher(testKey)
	c2, _ := NewCipher([]byte("another32byteslongsecretkey65432"))

	sealed, err := c1.Seal("Secret message")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := c2.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("Expected ErrDecrypt with the wrong key, got %v", err)
	}
}

func TestInvalidKeySize(t *testing.T) {
	if _, err := NewCipher([]byte("shortkey")); !errors.Is(err, ErrKeySize) {
		t.Fatalf("Expected ErrKeySize, got %v", err)
	}
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey(strings.Repeat("ab", KeySize) + "\n")
	if err != nil || len(key) != KeySize {
		t.Fatalf("ParseKey failed: %v, %d bytes", err, len(key))
	}
	if _, err := ParseKey("zz"); err == nil {
		t.Error("Expected an error for non-hex input")
	}
	if _, err := ParseKey("abcd"); !errors.Is(err, ErrKeySize) {
		t.Errorf("Expected ErrKeySize, got %v", err)
	}
}

func TestOpenMalformed(t *testing.T) {
	c, _ := NewCipher(testKey)
	for _, in := range []string{"plain text", sealedPrefix + "not-hex", sealedPrefix + "abcdef"} {
		if _, err := c.Open(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("Open(%q): expected ErrMalformed, got %v", in, err)
		}
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("Failed to generate self-signed cert: %v", err)
	}

	if len(cert.Certificate) == 0 {
		t.Fatal("Generated certificate is empty")
	}

	if cert.PrivateKey == nil {
		t.Fatal("Generated private key is nil")
	}
}
