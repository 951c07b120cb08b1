// Package crypto handles the disclosure oracle's signing key material: a
// password-encrypted key file using PBKDF2-HMAC-SHA256 derivation and
// AES-256-GCM authenticated encryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	currentVersion   = 1
)

// encryptedKeyJSON is the on-disk format for an encrypted oracle key.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig carries the information LoadOracleKey needs to resolve the
// oracle signing key.
type KeyConfig struct {
	// RawPrivateKey is the hex-encoded key (with or without 0x prefix).
	// If non-empty it is returned directly.
	RawPrivateKey string
	// EncryptedKeyPath points to a JSON file produced by EncryptKey.
	EncryptedKeyPath string
	// KeyPassword decrypts the file at EncryptedKeyPath.
	KeyPassword string
}

// EncryptKey encrypts a hex-encoded private key under a password and
// returns the JSON blob suitable for writing to disk.
func EncryptKey(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("crypto: expected 32-byte key, got %d bytes", len(keyBytes))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm init: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, keyBytes, nil)

	return json.MarshalIndent(encryptedKeyJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, "", "  ")
}

// DecryptKey reverses EncryptKey, returning the hex-encoded private key.
func DecryptKey(data []byte, password string) (string, error) {
	var enc encryptedKeyJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return "", fmt.Errorf("crypto: parse key file: %w", err)
	}
	if enc.Version != currentVersion {
		return "", fmt.Errorf("crypto: unsupported key file version %d", enc.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(enc.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(enc.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: decode ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return "", fmt.Errorf("crypto: cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("crypto: gcm init: %w", err)
	}
	keyBytes, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("crypto: wrong password or corrupted key file")
	}
	return hex.EncodeToString(keyBytes), nil
}

// LoadOracleKey resolves the oracle signing key from config: a raw key
// takes precedence, then an encrypted key file.
func LoadOracleKey(cfg KeyConfig) (string, error) {
	if cfg.RawPrivateKey != "" {
		return strings.TrimPrefix(cfg.RawPrivateKey, "0x"), nil
	}
	if cfg.EncryptedKeyPath == "" {
		return "", errors.New("crypto: no oracle key configured")
	}
	data, err := os.ReadFile(cfg.EncryptedKeyPath)
	if err != nil {
		return "", fmt.Errorf("crypto: read key file: %w", err)
	}
	return DecryptKey(data, cfg.KeyPassword)
}
