// Package artifacts retrieves the public inputs of an unlock attempt: the
// encryption config, the ciphertext blob and the annotation dataset.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

// ErrOutOfScope is returned for references that resolve outside the artifact base URL.
var ErrOutOfScope = errors.New("artifacts: reference outside artifact base")

// HTTPFetcher resolves artifact references against a base URL and retrieves them.
// The file scheme is served from a local data root so the same references work for
// a checked-out dataset and a hosted one.
type HTTPFetcher struct {
	client *http.Client
	base   *url.URL
	logger *slog.Logger
}

var _ domain.ArtifactFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds a fetcher. The client has no timeout; an
// unresponsive endpoint hangs the attempt (known gap, no timeout policy exists).
func NewHTTPFetcher(baseURL, dataRoot string, logger *slog.Logger) (*HTTPFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("artifacts: invalid base url %q: %w", baseURL, err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir(dataRoot)))

	return &HTTPFetcher{
		client: &http.Client{Transport: transport},
		base:   base,
		logger: logger,
	}, nil
}

// Resolve turns a reference into an absolute URL under the base. Absolute references
// are accepted only when they stay under it; ".." segments are always refused.
func (f *HTTPFetcher) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	target := f.base.ResolveReference(u)
	if !f.inScope(target) {
		return "", fmt.Errorf("%w: %q", ErrOutOfScope, ref)
	}
	return target.String(), nil
}

func (f *HTTPFetcher) inScope(u *url.URL) bool {
	if u.Scheme != f.base.Scheme || u.Host != f.base.Host || u.User.String() != f.base.User.String() || u.Opaque != "" {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == ".." {
			return false
		}
	}

	dir := f.base.Path[:strings.LastIndex(f.base.Path, "/")+1]
	if dir == "" {
		dir = "/"
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return strings.HasPrefix(p, dir)
}

func (f *HTTPFetcher) get(ctx context.Context, ref string) ([]byte, error) {
	target, err := f.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", ref, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %s", target, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	f.logger.Debug("artifact fetched", slog.String("url", target), slog.Int("bytes", len(body)))
	return body, nil
}

// FetchConfig retrieves and decodes the encryption config. Field validation is left to the caller.
func (f *HTTPFetcher) FetchConfig(ctx context.Context, ref string) (*domain.EncryptionConfig, error) {
	body, err := f.get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigUnavailable, err)
	}

	var cfg domain.EncryptionConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrConfigUnavailable, err)
	}
	return &cfg, nil
}

// FetchCiphertext returns the blob as text. Base64 is checked only when it is decoded.
func (f *HTTPFetcher) FetchCiphertext(ctx context.Context, ref string) (string, error) {
	body, err := f.get(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCiphertextUnavailable, err)
	}
	return string(body), nil
}

// FetchAnnotations requires a JSON array and relays its elements untouched.
func (f *HTTPFetcher) FetchAnnotations(ctx context.Context, ref string) ([]json.RawMessage, error) {
	body, err := f.get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAnnotationsUnavailable, err)
	}

	var annotations []json.RawMessage
	if err := json.Unmarshal(body, &annotations); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrAnnotationsUnavailable, err)
	}
	if annotations == nil {
		return nil, fmt.Errorf("%w: document is not an array", domain.ErrAnnotationsUnavailable)
	}
	return annotations, nil
}
