package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// KeySizeBits and CipherAlgorithm are the only parameters the producer emits.
const (
	KeySizeBits     = 256
	CipherAlgorithm = "AES-CBC"
)

var validate = validator.New()

// EncryptionConfig holds the public, non-secret parameters needed to decrypt the thread blob.
// It is fetched once per unlock attempt and discarded afterwards.
type EncryptionConfig struct {
	Salt       string `json:"salt" validate:"required,base64"`
	IV         string `json:"iv" validate:"required,base64"`
	Iterations int    `json:"iterations" validate:"gt=0"`

	// Informational fields written by the producer. When present they must match what we implement.
	KeySize   int    `json:"keySize,omitempty" validate:"omitempty,eq=256"`
	Algorithm string `json:"algorithm,omitempty" validate:"omitempty,eq=AES-CBC"`
}

// Validate rejects a config before any decryption is attempted.
func (c *EncryptionConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: missing config", ErrInvalidConfig)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ThreadDecrypter turns a password plus public parameters into the decrypted thread store.
// Implementations must report every post-derivation failure as ErrDecryptionFailed.
type ThreadDecrypter interface {
	// Derive computes the symmetric key. The caller owns the returned slice and must zero it.
	Derive(password string, cfg *EncryptionConfig) ([]byte, error)

	// Decrypt opens the base64 ciphertext with the derived key and the config's IV.
	Decrypt(key []byte, cfg *EncryptionConfig, ciphertextB64 string) (ThreadStore, error)
}
