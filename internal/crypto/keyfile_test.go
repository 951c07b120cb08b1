package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

const testPrivKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestEncryptDecryptRoundtrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testPrivKey, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testPrivKey {
		t.Errorf("decrypted key = %q, want original", got)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testPrivKey, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if _, err := DecryptKey(blob, "hunter3"); err == nil {
		t.Fatal("DecryptKey accepted a wrong password")
	}
}

func TestEncryptKeyValidation(t *testing.T) {
	if _, err := EncryptKey(testPrivKey, ""); err == nil {
		t.Error("EncryptKey accepted an empty password")
	}
	if _, err := EncryptKey("zz", "pw"); err == nil {
		t.Error("EncryptKey accepted invalid hex")
	}
	if _, err := EncryptKey("abcd", "pw"); err == nil {
		t.Error("EncryptKey accepted a short key")
	}
}

func TestLoadOracleKey(t *testing.T) {
	// Raw key takes precedence.
	got, err := LoadOracleKey(KeyConfig{RawPrivateKey: "0x" + testPrivKey})
	if err != nil {
		t.Fatalf("LoadOracleKey(raw): %v", err)
	}
	if got != testPrivKey {
		t.Errorf("raw key = %q, want stripped hex", got)
	}

	// Encrypted file path.
	blob, err := EncryptKey(testPrivKey, "pw")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "oracle.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err = LoadOracleKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("LoadOracleKey(file): %v", err)
	}
	if got != testPrivKey {
		t.Errorf("file key = %q, want original", got)
	}

	// Nothing configured.
	if _, err := LoadOracleKey(KeyConfig{}); err == nil {
		t.Error("LoadOracleKey succeeded with no key configured")
	}
}
