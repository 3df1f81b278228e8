package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

// DefaultDecryptDelay lets the "decrypting" state reach viewers before the CPU-bound step starts.
const DefaultDecryptDelay = 50 * time.Millisecond

// padIterations is the work factor spent when an attempt fails before a config with
// a usable iteration count is known. It matches the producer's default.
const padIterations = 100000

// padConfig is a well-formed throwaway config for cost padding. Its key is never used.
var padConfig = domain.EncryptionConfig{
	Salt: "AAAAAAAAAAAAAAAAAAAAAA==",
	IV:   "AAAAAAAAAAAAAAAAAAAAAA==",
}

// verifier lets later viewers prove the password after the state is published.
type verifier struct {
	cfg    domain.EncryptionConfig
	digest [sha256.Size]byte
}

// UnlockService runs the password unlock state machine and owns the published AppState.
// Only one attempt runs at a time; once unlocked, the state is never replaced.
type UnlockService struct {
	fetcher      domain.ArtifactFetcher
	decrypter    domain.ThreadDecrypter
	events       domain.EventPublisher
	logger       *slog.Logger
	decryptDelay time.Duration

	mu          sync.Mutex
	state       domain.UnlockState
	lastMessage string

	published atomic.Pointer[domain.AppState]
	verifier  atomic.Pointer[verifier]
}

var _ domain.UnlockService = (*UnlockService)(nil)

func NewUnlockService(
	fetcher domain.ArtifactFetcher,
	decrypter domain.ThreadDecrypter,
	events domain.EventPublisher,
	logger *slog.Logger,
	decryptDelay time.Duration,
) *UnlockService {
	return &UnlockService{
		fetcher:      fetcher,
		decrypter:    decrypter,
		events:       events,
		logger:       logger,
		decryptDelay: decryptDelay,
		state:        domain.StateIdle,
	}
}

// State returns the published application state, or nil while locked.
func (s *UnlockService) State() *domain.AppState {
	return s.published.Load()
}

// Status reports the current state machine node and, once unlocked, dataset sizes.
func (s *UnlockService) Status() domain.UnlockStatus {
	s.mu.Lock()
	status := domain.UnlockStatus{State: s.state, LastMessage: s.lastMessage}
	s.mu.Unlock()

	if app := s.published.Load(); app != nil {
		at := app.UnlockedAt
		status.Unlocked = true
		status.UnlockedAt = &at
		status.Threads = len(app.Threads)
		status.Posts = app.Threads.PostCount()
		status.Annotations = len(app.Annotations)
	}
	return status
}

// Unlock runs one attempt to completion. The attempt is detached from ctx cancellation:
// once started it always ends in unlocked or failed.
//
// Every failure other than ErrEmptyPassword, ErrUnlockInProgress and ErrAlreadyUnlocked is an
// *domain.UnlockError; domain.UserMessage renders all of them identically.
func (s *UnlockService) Unlock(ctx context.Context, password string, sources domain.Sources) (*domain.AppState, error) {
	if password == "" {
		return nil, domain.ErrEmptyPassword
	}

	attemptID, err := s.begin()
	if err != nil {
		return nil, err
	}

	log := s.logger.With(slog.String("attempt_id", attemptID))
	log.Info("unlock attempt started")

	app, err := s.run(context.WithoutCancel(ctx), attemptID, password, sources)
	if err != nil {
		s.fail(attemptID, err)
		log.Warn("unlock attempt failed", slog.String("error", err.Error()))
		return nil, err
	}

	log.Info("unlock succeeded",
		slog.Int("threads", len(app.Threads)),
		slog.Int("posts", app.Threads.PostCount()),
		slog.Int("annotations", len(app.Annotations)),
	)
	return app, nil
}

// begin rejects re-entry and moves Idle -> FetchingConfig.
func (s *UnlockService) begin() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.published.Load() != nil {
		return "", domain.ErrAlreadyUnlocked
	}
	if s.state.Busy() {
		return "", domain.ErrUnlockInProgress
	}

	attemptID := uuid.NewString()
	s.lastMessage = ""
	s.setLocked(attemptID, domain.StateFetchingConfig, "")
	return attemptID, nil
}

func (s *UnlockService) run(ctx context.Context, attemptID, password string, sources domain.Sources) (*domain.AppState, error) {
	cfg, err := s.fetcher.FetchConfig(ctx, sources.Config)
	if err != nil {
		s.pad(ctx, password, nil)
		return nil, &domain.UnlockError{Step: domain.StateFetchingConfig, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		s.pad(ctx, password, nil)
		return nil, &domain.UnlockError{Step: domain.StateFetchingConfig, Err: err}
	}

	s.transition(attemptID, domain.StateFetchingCiphertext)
	ciphertext, err := s.fetcher.FetchCiphertext(ctx, sources.Threads)
	if err != nil {
		s.pad(ctx, password, cfg)
		return nil, &domain.UnlockError{Step: domain.StateFetchingCiphertext, Err: err}
	}

	s.transition(attemptID, domain.StateDeriving)
	key, err := s.decrypter.Derive(password, cfg)
	if err != nil {
		return nil, &domain.UnlockError{Step: domain.StateDeriving, Err: err}
	}
	defer memguard.WipeBytes(key)

	s.transition(attemptID, domain.StateDecrypting)
	s.checkpoint(ctx)
	threads, err := s.decrypter.Decrypt(key, cfg, ciphertext)
	if err != nil {
		return nil, &domain.UnlockError{Step: domain.StateDecrypting, Err: err}
	}
	v := &verifier{cfg: *cfg, digest: sha256.Sum256(key)}

	s.transition(attemptID, domain.StateLoadingAnnotations)
	annotations, err := s.fetcher.FetchAnnotations(ctx, sources.Annotated)
	if err != nil {
		return nil, &domain.UnlockError{Step: domain.StateLoadingAnnotations, Err: err}
	}

	app := &domain.AppState{
		Threads:     threads,
		Annotations: annotations,
		UnlockedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.verifier.Store(v)
	s.published.Store(app)
	s.setLocked(attemptID, domain.StateUnlocked, "")
	s.mu.Unlock()

	return app, nil
}

// pad spends what a wrong password would have cost (key derivation plus the decrypt
// checkpoint) so early failures are not told apart by latency. cfg may be nil.
func (s *UnlockService) pad(ctx context.Context, password string, cfg *domain.EncryptionConfig) {
	c := padConfig
	c.Iterations = padIterations
	if cfg != nil && cfg.Iterations > 0 {
		c.Iterations = cfg.Iterations
	}
	if key, err := s.decrypter.Derive(password, &c); err == nil {
		memguard.WipeBytes(key)
	}
	s.checkpoint(ctx)
}

// Verify re-derives the key for password and compares it with the one that unlocked the
// dataset. Every mismatch is reported as a decryption failure.
func (s *UnlockService) Verify(ctx context.Context, password string) error {
	if password == "" {
		return domain.ErrEmptyPassword
	}
	v := s.verifier.Load()
	if v == nil {
		return domain.ErrLocked
	}

	cfg := v.cfg
	key, err := s.decrypter.Derive(password, &cfg)
	if err != nil {
		return &domain.UnlockError{Step: domain.StateDeriving, Err: err}
	}
	defer memguard.WipeBytes(key)

	s.checkpoint(ctx)
	digest := sha256.Sum256(key)
	if subtle.ConstantTimeCompare(digest[:], v.digest[:]) != 1 {
		return &domain.UnlockError{Step: domain.StateDecrypting, Err: domain.ErrDecryptionFailed}
	}
	return nil
}

func (s *UnlockService) checkpoint(ctx context.Context) {
	if s.decryptDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.decryptDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// fail records Failed and returns to Idle in one step so a retry can start immediately.
func (s *UnlockService) fail(attemptID string, err error) {
	msg := domain.UserMessage(err)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMessage = msg
	s.setLocked(attemptID, domain.StateFailed, msg)
	s.setLocked(attemptID, domain.StateIdle, "")
}

func (s *UnlockService) transition(attemptID string, next domain.UnlockState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(attemptID, next, "")
}

// setLocked must be called with s.mu held. Publishing never blocks.
func (s *UnlockService) setLocked(attemptID string, next domain.UnlockState, message string) {
	s.state = next
	s.logger.Debug("unlock state", slog.String("attempt_id", attemptID), slog.String("state", string(next)))
	if s.events != nil {
		s.events.Publish(domain.StateEvent{
			AttemptID: attemptID,
			State:     next,
			Message:   message,
			At:        time.Now().UTC(),
		})
	}
}
