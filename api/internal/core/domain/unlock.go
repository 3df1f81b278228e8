package domain

import (
	"context"
	"encoding/json"
	"net/url"
	"time"
)

// UnlockState is a node of the unlock state machine.
type UnlockState string

const (
	StateIdle               UnlockState = "idle"
	StateFetchingConfig     UnlockState = "fetching_config"
	StateFetchingCiphertext UnlockState = "fetching_ciphertext"
	StateDeriving           UnlockState = "deriving"
	StateDecrypting         UnlockState = "decrypting"
	StateLoadingAnnotations UnlockState = "loading_annotations"
	StateUnlocked           UnlockState = "unlocked"
	StateFailed             UnlockState = "failed"
)

// Busy reports whether an attempt is in flight in this state.
func (s UnlockState) Busy() bool {
	switch s {
	case StateIdle, StateFailed, StateUnlocked:
		return false
	default:
		return true
	}
}

// StateEvent is broadcast on every transition. Message is set only on failure
// and is always the uniform user-facing text.
type StateEvent struct {
	AttemptID string      `json:"attempt_id,omitempty"`
	State     UnlockState `json:"state"`
	Message   string      `json:"message,omitempty"`
	At        time.Time   `json:"at"`
}

// UnlockStatus is a point-in-time view of the orchestrator.
type UnlockStatus struct {
	State       UnlockState `json:"state"`
	Unlocked    bool        `json:"unlocked"`
	LastMessage string      `json:"last_message,omitempty"`
	UnlockedAt  *time.Time  `json:"unlocked_at,omitempty"`
	Threads     int         `json:"threads,omitempty"`
	Posts       int         `json:"posts,omitempty"`
	Annotations int         `json:"annotations,omitempty"`
}

// Default artifact locations, relative to the artifact base URL.
const (
	DefaultAnnotatedPath = "data/annotated.json"
	DefaultThreadsPath   = "data/threads.encrypted"
	DefaultConfigPath    = "data/encryption_config.json"
)

// Sources are the three retrieval targets of one unlock attempt.
type Sources struct {
	Annotated string `json:"annotated"`
	Threads   string `json:"threads"`
	Config    string `json:"config"`
}

// DefaultSources returns the built-in artifact locations.
func DefaultSources() Sources {
	return Sources{
		Annotated: DefaultAnnotatedPath,
		Threads:   DefaultThreadsPath,
		Config:    DefaultConfigPath,
	}
}

// ResolveSources applies the annotated, threads and config query parameters over defaults.
// Each parameter is independent; blank values keep the default.
func ResolveSources(query url.Values, defaults Sources) Sources {
	out := defaults
	if v := query.Get("annotated"); v != "" {
		out.Annotated = v
	}
	if v := query.Get("threads"); v != "" {
		out.Threads = v
	}
	if v := query.Get("config"); v != "" {
		out.Config = v
	}
	return out
}

// ArtifactFetcher retrieves the public artifacts. Implementations must not touch shared state.
type ArtifactFetcher interface {
	FetchConfig(ctx context.Context, ref string) (*EncryptionConfig, error)
	FetchCiphertext(ctx context.Context, ref string) (string, error)
	FetchAnnotations(ctx context.Context, ref string) ([]json.RawMessage, error)
}

// UnlockService is the orchestrator contract consumed by the HTTP layer.
type UnlockService interface {
	StateProvider
	Unlock(ctx context.Context, password string, sources Sources) (*AppState, error)
	// Verify checks a password against the already unlocked dataset without changing state.
	Verify(ctx context.Context, password string) error
	Status() UnlockStatus
}

// SessionManager issues and checks the credentials that gate the view endpoints.
type SessionManager interface {
	Issue() (token string, expiresAt time.Time, err error)
	Validate(token string) error
}

// EventPublisher receives every state transition.
type EventPublisher interface {
	Publish(event StateEvent)
}
