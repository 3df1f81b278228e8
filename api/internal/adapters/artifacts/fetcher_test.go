package artifacts_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irgordon/threadvault/api/internal/adapters/artifacts"
	"github.com/irgordon/threadvault/api/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data/encryption_config.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"salt":"AAAAAAAAAAAAAAAAAAAAAA==","iv":"AAAAAAAAAAAAAAAAAAAAAA==","iterations":100000,"keySize":256,"algorithm":"AES-CBC"}`))
	})
	mux.HandleFunc("/data/threads.encrypted", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("c2VjcmV0\n"))
	})
	mux.HandleFunc("/data/annotated.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"thread_id":1,"stance":"pro"},{"thread_id":2}]`))
	})
	mux.HandleFunc("/broken.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"salt":`))
	})
	mux.HandleFunc("/object.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"thread_id":1}`))
	})
	mux.HandleFunc("/null.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher(t *testing.T, base string) *artifacts.HTTPFetcher {
	t.Helper()
	f, err := artifacts.NewHTTPFetcher(base, t.TempDir(), discardLogger())
	require.NoError(t, err)
	return f
}

func TestHTTPFetcher_FetchConfig(t *testing.T) {
	srv := newServer(t)
	f := newFetcher(t, srv.URL+"/")
	ctx := context.Background()

	t.Run("Decodes Config", func(t *testing.T) {
		cfg, err := f.FetchConfig(ctx, domain.DefaultConfigPath)
		require.NoError(t, err)
		assert.Equal(t, "AAAAAAAAAAAAAAAAAAAAAA==", cfg.Salt)
		assert.Equal(t, 100000, cfg.Iterations)
		assert.Equal(t, "AES-CBC", cfg.Algorithm)
	})

	t.Run("404 Is Unavailable", func(t *testing.T) {
		_, err := f.FetchConfig(ctx, "missing.json")
		assert.ErrorIs(t, err, domain.ErrConfigUnavailable)
	})

	t.Run("500 Is Unavailable", func(t *testing.T) {
		_, err := f.FetchConfig(ctx, "/boom")
		assert.ErrorIs(t, err, domain.ErrConfigUnavailable)
	})

	t.Run("Unparseable Body Is Unavailable", func(t *testing.T) {
		_, err := f.FetchConfig(ctx, "/broken.json")
		assert.ErrorIs(t, err, domain.ErrConfigUnavailable)
	})
}

func TestHTTPFetcher_FetchCiphertext(t *testing.T) {
	srv := newServer(t)
	f := newFetcher(t, srv.URL+"/")
	ctx := context.Background()

	body, err := f.FetchCiphertext(ctx, domain.DefaultThreadsPath)
	require.NoError(t, err)
	assert.Equal(t, "c2VjcmV0\n", body)

	_, err = f.FetchCiphertext(ctx, "/boom")
	assert.ErrorIs(t, err, domain.ErrCiphertextUnavailable)
}

func TestHTTPFetcher_FetchAnnotations(t *testing.T) {
	srv := newServer(t)
	f := newFetcher(t, srv.URL+"/")
	ctx := context.Background()

	t.Run("Array", func(t *testing.T) {
		annotations, err := f.FetchAnnotations(ctx, domain.DefaultAnnotatedPath)
		require.NoError(t, err)
		require.Len(t, annotations, 2)
		assert.JSONEq(t, `{"thread_id":1,"stance":"pro"}`, string(annotations[0]))
	})

	t.Run("Object Rejected", func(t *testing.T) {
		_, err := f.FetchAnnotations(ctx, "/object.json")
		assert.ErrorIs(t, err, domain.ErrAnnotationsUnavailable)
	})

	t.Run("Null Rejected", func(t *testing.T) {
		_, err := f.FetchAnnotations(ctx, "/null.json")
		assert.ErrorIs(t, err, domain.ErrAnnotationsUnavailable)
	})
}

func TestHTTPFetcher_Resolve(t *testing.T) {
	f := newFetcher(t, "https://data.example/viewer/")

	got, err := f.Resolve("data/annotated.json")
	require.NoError(t, err)
	assert.Equal(t, "https://data.example/viewer/data/annotated.json", got)

	got, err = f.Resolve("https://data.example/viewer/alt/threads.encrypted")
	require.NoError(t, err)
	assert.Equal(t, "https://data.example/viewer/alt/threads.encrypted", got)

	got, err = f.Resolve("/viewer/data/encryption_config.json")
	require.NoError(t, err)
	assert.Equal(t, "https://data.example/viewer/data/encryption_config.json", got)
}

func TestHTTPFetcher_Resolve_RefusesOutsideBase(t *testing.T) {
	f := newFetcher(t, "https://data.example/viewer/")

	refs := []string{
		"https://mirror.example/threads.encrypted",
		"//mirror.example/threads.encrypted",
		"http://data.example/viewer/data/annotated.json",
		"https://user@data.example/viewer/data/annotated.json",
		"https://data.example/other/threads.encrypted",
		"/other/threads.encrypted",
		"../threads.encrypted",
		"data/../../threads.encrypted",
		"%2e%2e/threads.encrypted",
		"file:///etc/passwd",
		"mailto:someone@example.com",
	}
	for _, ref := range refs {
		t.Run(ref, func(t *testing.T) {
			_, err := f.Resolve(ref)
			assert.ErrorIs(t, err, artifacts.ErrOutOfScope)
		})
	}
}

func TestHTTPFetcher_OutOfScope_NeverRequested(t *testing.T) {
	var hits atomic.Int32
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"salt":"AAAAAAAAAAAAAAAAAAAAAA==","iv":"AAAAAAAAAAAAAAAAAAAAAA==","iterations":1}`))
	}))
	t.Cleanup(other.Close)

	srv := newServer(t)
	f := newFetcher(t, srv.URL+"/")
	ctx := context.Background()

	_, err := f.FetchConfig(ctx, other.URL+"/c.json")
	assert.ErrorIs(t, err, domain.ErrConfigUnavailable)
	assert.ErrorIs(t, err, artifacts.ErrOutOfScope)

	_, err = f.FetchCiphertext(ctx, other.URL+"/t")
	assert.ErrorIs(t, err, domain.ErrCiphertextUnavailable)

	_, err = f.FetchAnnotations(ctx, other.URL+"/a")
	assert.ErrorIs(t, err, domain.ErrAnnotationsUnavailable)

	assert.Zero(t, hits.Load())
}

func TestHTTPFetcher_FileScheme(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "annotated.json"), []byte(`[]`), 0o644))

	f, err := artifacts.NewHTTPFetcher("file:///", root, discardLogger())
	require.NoError(t, err)

	annotations, err := f.FetchAnnotations(context.Background(), domain.DefaultAnnotatedPath)
	require.NoError(t, err)
	assert.Empty(t, annotations)

	_, err = f.FetchConfig(context.Background(), domain.DefaultConfigPath)
	assert.ErrorIs(t, err, domain.ErrConfigUnavailable)
}
