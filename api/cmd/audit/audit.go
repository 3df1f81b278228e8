package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/irgordon/threadvault/api/internal/core/domain"
	"github.com/irgordon/threadvault/api/internal/infrastructure/crypto"
)

// auditInput names the published files and the serving environment to check.
type auditInput struct {
	Dir           string
	ConfigFile    string
	ThreadsFile   string
	AnnotatedFile string
	Env           string
	CORSOrigins   string
}

type report struct {
	Passes   []string
	Failures []string
}

func (r *report) pass(format string, args ...any) {
	r.Passes = append(r.Passes, fmt.Sprintf(format, args...))
}

func (r *report) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// audit checks the published artifacts without the password: everything here is public.
func audit(in auditInput) report {
	var r report

	// 1. Encryption config
	raw, err := os.ReadFile(filepath.Join(in.Dir, in.ConfigFile))
	if err != nil {
		r.fail("could not read encryption config: %v", err)
		return r
	}
	var cfg domain.EncryptionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		r.fail("failed to parse encryption config: %v", err)
		return r
	}

	salt, _, err := crypto.DecodeParams(&cfg)
	if err != nil {
		r.fail("encryption config is invalid: %v", err)
	} else {
		r.pass("encryption config decodes.")
		if len(salt) < crypto.SaltSize {
			r.fail("salt is %d bytes, want at least %d", len(salt), crypto.SaltSize)
		} else {
			r.pass("salt length.")
		}
	}

	if cfg.Iterations < crypto.DefaultIterations {
		r.fail("PBKDF2 iterations %d below %d", cfg.Iterations, crypto.DefaultIterations)
	} else {
		r.pass("PBKDF2 work factor.")
	}

	// 2. Ciphertext shape
	ciphertext, err := os.ReadFile(filepath.Join(in.Dir, in.ThreadsFile))
	if err != nil {
		r.fail("ciphertext unreadable: %v", err)
	} else if blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(ciphertext))); err != nil {
		r.fail("ciphertext is not base64")
	} else if len(blob) == 0 || len(blob)%16 != 0 {
		r.fail("ciphertext length %d is not a positive multiple of the AES block", len(blob))
	} else {
		r.pass("ciphertext is block aligned.")
	}

	// 3. Annotations must stay plaintext JSON
	annotated, err := os.ReadFile(filepath.Join(in.Dir, in.AnnotatedFile))
	var records []json.RawMessage
	if err != nil || json.Unmarshal(annotated, &records) != nil || records == nil {
		r.fail("annotations are missing or not a JSON array")
	} else {
		r.pass("%d annotation records.", len(records))
	}

	// 4. Serving posture
	if in.Env == "production" && in.CORSOrigins == "" {
		r.fail("CORS_ALLOWED_ORIGINS must be set in production.")
	}

	return r
}
