package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

const blockSize = aes.BlockSize

// DecryptError is what every failure after key derivation looks like.
// Reason is for developer logs only; callers see ErrDecryptionFailed through errors.Is.
type DecryptError struct {
	Reason string
}

func (e *DecryptError) Error() string {
	return "crypto: decryption failed (" + e.Reason + ")"
}

func (e *DecryptError) Unwrap() error {
	return domain.ErrDecryptionFailed
}

func decryptFailure(reason string) error {
	return &DecryptError{Reason: reason}
}

// ThreadService derives keys and opens thread blobs. It holds no key material between calls.
type ThreadService struct{}

var _ domain.ThreadDecrypter = (*ThreadService)(nil)

func NewThreadService() *ThreadService {
	return &ThreadService{}
}

func (s *ThreadService) Derive(password string, cfg *domain.EncryptionConfig) ([]byte, error) {
	salt, _, err := DecodeParams(cfg)
	if err != nil {
		return nil, err
	}
	return DeriveKey(password, salt, cfg.Iterations)
}

func (s *ThreadService) Decrypt(key []byte, cfg *domain.EncryptionConfig, ciphertextB64 string) (domain.ThreadStore, error) {
	_, iv, err := DecodeParams(cfg)
	if err != nil {
		return nil, err
	}
	return DecryptThreads(key, iv, ciphertextB64)
}

// DecryptThreads opens an AES-256-CBC blob and parses the thread store it contains.
// Bad base64, bad length, bad padding, invalid UTF-8, empty text and bad JSON all
// collapse to ErrDecryptionFailed.
func DecryptThreads(key, iv []byte, ciphertextB64 string) (domain.ThreadStore, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertextB64))
	if err != nil {
		return nil, decryptFailure("ciphertext is not valid base64")
	}

	plaintext, err := decryptCBC(key, iv, ciphertext)
	if err != nil {
		return nil, err
	}
	defer Zero(plaintext)

	if !utf8.Valid(plaintext) {
		return nil, decryptFailure("plaintext is not valid UTF-8")
	}
	if len(bytes.TrimSpace(plaintext)) == 0 {
		return nil, decryptFailure("plaintext is empty")
	}

	var store domain.ThreadStore
	if err := json.Unmarshal(plaintext, &store); err != nil {
		return nil, decryptFailure("plaintext is not a thread document")
	}
	if store == nil {
		return nil, decryptFailure("thread document is null")
	}
	for id := range store {
		if _, err := strconv.Atoi(id); err != nil {
			return nil, decryptFailure("thread id is not an integer")
		}
	}

	return store, nil
}

func decryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, decryptFailure(fmt.Sprintf("key must be %d bytes", KeySize))
	}
	if len(iv) != blockSize {
		return nil, decryptFailure("iv must be one block")
	}
	if len(ciphertext) == 0 || len(ciphertext)%blockSize != 0 {
		return nil, decryptFailure("ciphertext is not a whole number of blocks")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, decryptFailure("block cipher failure")
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	unpadded, err := pkcs7Unpad(out)
	if err != nil {
		Zero(out)
		return nil, err
	}
	return unpadded, nil
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, decryptFailure("padded length is not a whole number of blocks")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, decryptFailure("invalid padding length")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, decryptFailure("invalid padding bytes")
		}
	}
	return b[:len(b)-n], nil
}

func pkcs7Pad(b []byte) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

// Encrypt is the reference producer: AES-256-CBC with PKCS#7 padding, base64 output.
func Encrypt(key, iv, plaintext []byte) (string, error) {
	if len(key) != KeySize {
		return "", fmt.Errorf("crypto: key must be %d bytes for AES-256", KeySize)
	}
	if len(iv) != blockSize {
		return "", fmt.Errorf("crypto: iv must be %d bytes", blockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("crypto: block cipher failure: %w", err)
	}

	padded := pkcs7Pad(plaintext)
	defer Zero(padded)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Seal encrypts plaintext under a password with a fresh random salt and IV and
// returns the ciphertext together with the public config needed to open it.
func Seal(password string, plaintext []byte, iterations int) (string, *domain.EncryptionConfig, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", nil, fmt.Errorf("crypto: salt generation failure: %w", err)
	}
	iv := make([]byte, blockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", nil, fmt.Errorf("crypto: iv generation failure: %w", err)
	}

	key, err := DeriveKey(password, salt, iterations)
	if err != nil {
		return "", nil, err
	}
	defer Zero(key)

	ciphertext, err := Encrypt(key, iv, plaintext)
	if err != nil {
		return "", nil, err
	}

	cfg := &domain.EncryptionConfig{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Iterations: iterations,
		KeySize:    domain.KeySizeBits,
		Algorithm:  domain.CipherAlgorithm,
	}
	return ciphertext, cfg, nil
}
