package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irgordon/threadvault/api/internal/api/handlers"
	"github.com/irgordon/threadvault/api/internal/api/middleware"
	"github.com/irgordon/threadvault/api/internal/core/domain"
)

// stubService returns a canned result and records the sources it was given.
type stubService struct {
	err       error
	verifyErr error
	state     *domain.AppState
	status    domain.UnlockStatus
	calls     int
	verified  int
	sources   domain.Sources
	pw        string
}

func (s *stubService) Unlock(ctx context.Context, password string, sources domain.Sources) (*domain.AppState, error) {
	s.calls++
	s.pw = password
	s.sources = sources
	if s.err != nil {
		return nil, s.err
	}
	return s.state, nil
}

func (s *stubService) Verify(ctx context.Context, password string) error {
	s.verified++
	s.pw = password
	return s.verifyErr
}

func (s *stubService) State() *domain.AppState     { return s.state }
func (s *stubService) Status() domain.UnlockStatus { return s.status }

// stubSessions hands out a fixed token, or fails when err is set.
type stubSessions struct {
	err    error
	issued int
}

func (s *stubSessions) Issue() (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.issued++
	return "session-token", time.Now().Add(time.Hour), nil
}

func (s *stubSessions) Validate(token string) error {
	if token != "session-token" {
		return domain.ErrSessionRequired
	}
	return nil
}

func newUnlockHandler(svc domain.UnlockService) *handlers.UnlockHandler {
	return handlers.NewUnlockHandler(svc, &stubSessions{}, domain.DefaultSources(), discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postUnlock(h *handlers.UnlockHandler, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Unlock(rec, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

// ==============================================================================
// 1. Unlock
// ==============================================================================

func TestUnlockSuccess(t *testing.T) {
	svc := &stubService{
		state:  &domain.AppState{},
		status: domain.UnlockStatus{State: domain.StateUnlocked, Unlocked: true, Threads: 2},
	}
	h := newUnlockHandler(svc)

	rec := postUnlock(h, "/api/v1/unlock", `{"password":"correct-horse"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "correct-horse", svc.pw)
	assert.Equal(t, domain.DefaultSources(), svc.sources)

	var resp handlers.UnlockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Unlocked)
	assert.Equal(t, 2, resp.Threads)
	assert.Equal(t, "session-token", resp.Token)
	assert.False(t, resp.ExpiresAt.IsZero())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.Equal(t, "session-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
}

func TestUnlockAfterUnlockRequiresSamePassword(t *testing.T) {
	t.Run("matching password gets a session", func(t *testing.T) {
		svc := &stubService{err: domain.ErrAlreadyUnlocked, status: domain.UnlockStatus{State: domain.StateUnlocked, Unlocked: true}}
		sessions := &stubSessions{}
		h := handlers.NewUnlockHandler(svc, sessions, domain.DefaultSources(), discardLogger())

		rec := postUnlock(h, "/api/v1/unlock", `{"password":"correct-horse"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, svc.verified)
		assert.Equal(t, "correct-horse", svc.pw)
		assert.Equal(t, 1, sessions.issued)
	})

	t.Run("other password is refused uniformly", func(t *testing.T) {
		svc := &stubService{
			err:       domain.ErrAlreadyUnlocked,
			verifyErr: &domain.UnlockError{Step: domain.StateDecrypting, Err: domain.ErrDecryptionFailed},
		}
		sessions := &stubSessions{}
		h := handlers.NewUnlockHandler(svc, sessions, domain.DefaultSources(), discardLogger())

		rec := postUnlock(h, "/api/v1/unlock", `{"password":"guess"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, domain.UnlockFailureMessage, decodeMessage(t, rec))
		assert.Zero(t, sessions.issued)
		assert.Empty(t, rec.Result().Cookies())
	})
}

func TestUnlockSessionIssueFailure(t *testing.T) {
	svc := &stubService{state: &domain.AppState{}}
	h := handlers.NewUnlockHandler(svc, &stubSessions{err: fmt.Errorf("no entropy")}, domain.DefaultSources(), discardLogger())

	rec := postUnlock(h, "/api/v1/unlock", `{"password":"pw"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestUnlockQueryOverridesSources(t *testing.T) {
	svc := &stubService{state: &domain.AppState{}}
	h := newUnlockHandler(svc)

	rec := postUnlock(h, "/api/v1/unlock?threads=alt/t.enc&config=https://cdn.example/c.json", `{"password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DefaultAnnotatedPath, svc.sources.Annotated)
	assert.Equal(t, "alt/t.enc", svc.sources.Threads)
	assert.Equal(t, "https://cdn.example/c.json", svc.sources.Config)
}

func TestUnlockRejectsEmptyPasswordLocally(t *testing.T) {
	for _, body := range []string{`{"password":""}`, `{}`} {
		t.Run(body, func(t *testing.T) {
			svc := &stubService{}
			h := newUnlockHandler(svc)

			rec := postUnlock(h, "/api/v1/unlock", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, domain.EmptyPasswordMessage, decodeMessage(t, rec))
			assert.Zero(t, svc.calls)
		})
	}
}

func TestUnlockInvalidJSON(t *testing.T) {
	svc := &stubService{}
	h := newUnlockHandler(svc)

	rec := postUnlock(h, "/api/v1/unlock", `{"password":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestUnlockErrorMapping(t *testing.T) {
	step := func(s domain.UnlockState, err error) error { return &domain.UnlockError{Step: s, Err: err} }

	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"in progress", domain.ErrUnlockInProgress, http.StatusConflict, "Unlock already in progress."},
		{"config", step(domain.StateFetchingConfig, domain.ErrConfigUnavailable), http.StatusUnauthorized, domain.UnlockFailureMessage},
		{"ciphertext", step(domain.StateFetchingCiphertext, domain.ErrCiphertextUnavailable), http.StatusUnauthorized, domain.UnlockFailureMessage},
		{"invalid config", step(domain.StateFetchingConfig, domain.ErrInvalidConfig), http.StatusUnauthorized, domain.UnlockFailureMessage},
		{"decrypt", step(domain.StateDecrypting, domain.ErrDecryptionFailed), http.StatusUnauthorized, domain.UnlockFailureMessage},
		{"annotations", step(domain.StateLoadingAnnotations, domain.ErrAnnotationsUnavailable), http.StatusUnauthorized, domain.UnlockFailureMessage},
		{"unknown", fmt.Errorf("boom"), http.StatusUnauthorized, domain.UnlockFailureMessage},
		{"session", domain.ErrSessionRequired, http.StatusUnauthorized, "Unlock required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newUnlockHandler(&stubService{err: tt.err, verifyErr: tt.err})

			rec := postUnlock(h, "/api/v1/unlock", `{"password":"pw"}`)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, decodeMessage(t, rec))
		})
	}
}

func TestStatus(t *testing.T) {
	svc := &stubService{status: domain.UnlockStatus{State: domain.StateIdle, LastMessage: domain.UnlockFailureMessage}}
	h := newUnlockHandler(svc)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status domain.UnlockStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, domain.StateIdle, status.State)
	assert.False(t, status.Unlocked)
	assert.Equal(t, domain.UnlockFailureMessage, status.LastMessage)
}

// ==============================================================================
// 2. Thread Views
// ==============================================================================

func threadRouter(state domain.StateProvider) http.Handler {
	h := handlers.NewThreadHandler(state)
	r := chi.NewRouter()
	r.Get("/threads", h.List)
	r.Get("/threads/{id}", h.Get)
	r.Get("/annotations", h.Annotations)
	return r
}

func TestThreadViewsLocked(t *testing.T) {
	r := threadRouter(&stubService{})

	for _, path := range []string{"/threads", "/threads/1", "/annotations"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusLocked, rec.Code)
		})
	}
}

func TestThreadViewsUnlocked(t *testing.T) {
	state := &domain.AppState{
		Threads: domain.ThreadStore{
			"10": {{Content: "a"}},
			"2":  {{Content: "b"}, {Content: "c"}},
		},
		Annotations: []json.RawMessage{json.RawMessage(`{"thread_id":2,"score":0.5}`)},
		UnlockedAt:  time.Now(),
	}
	r := threadRouter(&stubService{state: state})

	t.Run("list is numerically sorted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var list []handlers.ThreadSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, []handlers.ThreadSummary{{ID: "2", Posts: 2}, {ID: "10", Posts: 1}}, list)
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads/2", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var thread handlers.ThreadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thread))
		assert.Equal(t, "2", thread.ID)
		require.Len(t, thread.Posts, 2)
		assert.Equal(t, "c", thread.Posts[1].Content)
	})

	t.Run("unknown thread", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads/99", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("annotations relayed opaquely", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/annotations", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"thread_id":2,"score":0.5}]`, rec.Body.String())
	})
}
