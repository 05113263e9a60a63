package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

// Sealed snapshot layout: [16B salt][12B nonce][AES-256-GCM ciphertext].
// Salt and nonce are fresh per seal, so the file carries everything needed
// to open it again with only the passphrase.
const (
	saltLen  = 16
	nonceLen = 12
	keyLen   = 32

	argonPasses    = 3
	argonMemoryKiB = 64 * 1024
	argonThreads   = 4
)

const sealOverhead = saltLen + nonceLen

// snapshotKey stretches the passphrase into an AES-256 key with argon2id.
func snapshotKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonPasses, argonMemoryKiB, argonThreads, keyLen)
}

func snapshotCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(snapshotKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("snapshot cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("snapshot gcm: %w", err)
	}
	return gcm, nil
}

// sealFile encrypts src into dst under a fresh salt and nonce.
func sealFile(src, dst, passphrase string) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	header := make([]byte, sealOverhead)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return fmt.Errorf("random header: %w", err)
	}
	salt, nonce := header[:saltLen], header[saltLen:]

	gcm, err := snapshotCipher(passphrase, salt)
	if err != nil {
		return err
	}

	out := append(header, gcm.Seal(nil, nonce, plaintext, nil)...)
	if err := os.WriteFile(dst, out, 0600); err != nil {
		return fmt.Errorf("write sealed snapshot: %w", err)
	}
	return nil
}

// openSealedFile decrypts src into dst using the salt and nonce carried in
// the file header.
func openSealedFile(src, dst, passphrase string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read sealed snapshot: %w", err)
	}
	if len(data) < sealOverhead {
		return fmt.Errorf("sealed snapshot truncated: %d bytes", len(data))
	}
	salt, nonce, ciphertext := data[:saltLen], data[saltLen:sealOverhead], data[sealOverhead:]

	gcm, err := snapshotCipher(passphrase, salt)
	if err != nil {
		return err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("open sealed snapshot: %w", err)
	}

	if err := os.WriteFile(dst, plaintext, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
