package crypto

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

const (
	// KeySize is the AES-256 key length produced by DeriveKey.
	KeySize = 32

	// SaltSize matches what the producer generates. Fetched salts of other lengths are accepted.
	SaltSize = 16

	// DefaultIterations is the producer's PBKDF2 work factor.
	DefaultIterations = 100000
)

// DeriveKey runs PBKDF2 with HMAC-SHA1 over the UTF-8 password bytes.
// SHA-1 is fixed by the producer of the ciphertext, not chosen here: any other
// hash yields a key that cannot open existing blobs.
func DeriveKey(password string, salt []byte, iterations int) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("crypto: %w: empty salt", domain.ErrInvalidConfig)
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("crypto: %w: iterations must be positive", domain.ErrInvalidConfig)
	}
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha1.New), nil
}

// DecodeParams base64-decodes the salt and IV of a config. The IV must be one AES block.
func DecodeParams(cfg *domain.EncryptionConfig) (salt, iv []byte, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	salt, err = base64.StdEncoding.DecodeString(cfg.Salt)
	if err != nil || len(salt) == 0 {
		return nil, nil, fmt.Errorf("crypto: %w: salt is not valid base64", domain.ErrInvalidConfig)
	}

	iv, err = base64.StdEncoding.DecodeString(cfg.IV)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: %w: iv is not valid base64", domain.ErrInvalidConfig)
	}
	if len(iv) != blockSize {
		return nil, nil, fmt.Errorf("crypto: %w: iv must be %d bytes, got %d", domain.ErrInvalidConfig, blockSize, len(iv))
	}

	return salt, iv, nil
}

// Zero overwrites key material in place.
func Zero(b []byte) {
	memguard.WipeBytes(b)
}
