package encryption_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/atulpatildbz/groq-speech-to-text/internal/config"
	"github.com/atulpatildbz/groq-speech-to-text/internal/encryption"
)

func newTestAgeEncryptor(t *testing.T) *encryption.AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return encryption.NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "gdsync.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "gdsync.key"),
	})
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()

	enc := newTestAgeEncryptor(t)

	if enc.IsConfigured() {
		t.Fatal("IsConfigured() = true before Setup")
	}
	if err := enc.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !enc.IsConfigured() {
		t.Fatal("IsConfigured() = false after Setup")
	}
}

func TestAgeEncryptor_Setup_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	privPath := filepath.Join(dir, "gdsync.key")
	enc := encryption.NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "gdsync.pub"),
		PrivateKeyPath: privPath,
	})

	if err := enc.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	first, err := os.ReadFile(privPath)
	if err != nil {
		t.Fatalf("reading private key: %v", err)
	}

	// A second Setup must not rotate the identity; stored tokens would
	// become unreadable.
	if err := enc.Setup(); err != nil {
		t.Fatalf("second Setup() error = %v", err)
	}
	second, err := os.ReadFile(privPath)
	if err != nil {
		t.Fatalf("reading private key: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Setup() overwrote the existing identity")
	}
}

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	enc := newTestAgeEncryptor(t)
	if err := enc.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	plaintext := []byte(`{"access_token":"secret-token-value"}`)

	var sealed bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader(plaintext), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Contains(sealed.Bytes(), []byte("secret-token-value")) {
		t.Error("ciphertext contains the plaintext")
	}

	var opened bytes.Buffer
	if err := enc.Decrypt(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened.Bytes(), plaintext) {
		t.Errorf("round trip = %q, want %q", opened.Bytes(), plaintext)
	}
}

func TestAgeEncryptor_Decrypt_WrongKey(t *testing.T) {
	t.Parallel()

	sealing := newTestAgeEncryptor(t)
	if err := sealing.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	other := newTestAgeEncryptor(t)
	if err := other.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var sealed bytes.Buffer
	if err := sealing.Encrypt(bytes.NewReader([]byte("data")), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	var out bytes.Buffer
	if err := other.Decrypt(bytes.NewReader(sealed.Bytes()), &out); err == nil {
		t.Fatal("Decrypt() with the wrong identity succeeded")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("age is the default", func(t *testing.T) {
		enc, err := encryption.NewEncryptorFromConfig(config.EncryptionConfig{})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := enc.(*encryption.AgeEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *AgeEncryptor", enc)
		}
	})

	t.Run("test variant", func(t *testing.T) {
		enc, err := encryption.NewEncryptorFromConfig(config.EncryptionConfig{Type: "test"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := enc.(*encryption.TestEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *TestEncryptor", enc)
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		if _, err := encryption.NewEncryptorFromConfig(config.EncryptionConfig{Type: "rot13"}); err == nil {
			t.Fatal("NewEncryptorFromConfig() accepted unknown type")
		}
	})
}
