package domain

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	// ErrEmptyPassword is handled locally and never reaches the network.
	ErrEmptyPassword = errors.New("password is required")
)

// Artifact errors.
var (
	// ErrConfigUnavailable indicates the encryption config could not be fetched or parsed.
	ErrConfigUnavailable = errors.New("encryption config unavailable")

	// ErrCiphertextUnavailable indicates the encrypted thread blob could not be fetched.
	ErrCiphertextUnavailable = errors.New("ciphertext unavailable")

	// ErrAnnotationsUnavailable indicates the annotation dataset could not be fetched or is not an array.
	ErrAnnotationsUnavailable = errors.New("annotations unavailable")

	// ErrInvalidConfig indicates a missing or malformed salt, iv or iteration count.
	ErrInvalidConfig = errors.New("invalid encryption config")
)

// Crypto errors.
var (
	// ErrDecryptionFailed covers every failure after the key is derived: padding, UTF-8, empty text, JSON.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Orchestration errors.
var (
	// ErrUnlockInProgress indicates another attempt is still running.
	ErrUnlockInProgress = errors.New("unlock already in progress")

	// ErrAlreadyUnlocked indicates the state has been published; nothing is re-fetched.
	ErrAlreadyUnlocked = errors.New("already unlocked")

	// ErrLocked indicates view data was requested before a successful unlock.
	ErrLocked = errors.New("data is locked")

	// ErrThreadNotFound indicates the requested thread id is not in the store.
	ErrThreadNotFound = errors.New("thread not found")
)

// Session errors.
var (
	// ErrSessionRequired indicates a view request without a valid session token.
	ErrSessionRequired = errors.New("session required")
)

// UnlockFailureMessage is the only failure text ever shown to the user.
// Config, ciphertext, annotation and decryption failures are deliberately indistinguishable.
const UnlockFailureMessage = "Incorrect password or failed to load data. Please try again."

// EmptyPasswordMessage is shown when the password field is blank.
const EmptyPasswordMessage = "Please enter a password."

// UnlockError records which step of an unlock attempt failed.
// It is for tests and developer logs; UserMessage hides it from users.
type UnlockError struct {
	Step UnlockState
	Err  error
}

func (e *UnlockError) Error() string {
	return fmt.Sprintf("unlock failed while %s: %v", e.Step, e.Err)
}

func (e *UnlockError) Unwrap() error {
	return e.Err
}

// UserMessage maps an unlock error to the text that may be displayed.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyPassword):
		return EmptyPasswordMessage
	case errors.Is(err, ErrUnlockInProgress):
		return "Unlock already in progress."
	case errors.Is(err, ErrAlreadyUnlocked):
		return "Data is already unlocked."
	default:
		return UnlockFailureMessage
	}
}
