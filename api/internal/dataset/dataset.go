// Package dataset converts CSV exports into the viewer's three artifacts.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/irgordon/threadvault/api/internal/core/domain"
	"github.com/irgordon/threadvault/api/internal/infrastructure/crypto"
)

const (
	AnnotatedCSV = "all_annotated.csv"
	ThreadsCSV   = "all_threads_anonymized.csv"

	AnnotatedJSON    = "annotated.json"
	ThreadsEncrypted = "threads.encrypted"
	EncryptionConfig = "encryption_config.json"

	MinPasswordLength = 8
)

// Dataset is the converted content of one input directory.
type Dataset struct {
	Annotated  []Record
	Threads    domain.ThreadStore
	ThreadRows int
}

// Summary describes what Write produced.
type Summary struct {
	Records        int
	Threads        int
	Posts          int
	AnnotatedBytes int
	PlaintextBytes int
	EncryptedBytes int
}

// Load reads both CSVs from dir.
func Load(dir string) (*Dataset, error) {
	annotatedFile, err := openInput(filepath.Join(dir, AnnotatedCSV))
	if err != nil {
		return nil, err
	}
	defer annotatedFile.Close()

	records, err := ReadAnnotated(annotatedFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", AnnotatedCSV, err)
	}

	threadsFile, err := openInput(filepath.Join(dir, ThreadsCSV))
	if err != nil {
		return nil, err
	}
	defer threadsFile.Close()

	threads, rows, err := ReadThreads(threadsFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ThreadsCSV, err)
	}

	return &Dataset{Annotated: records, Threads: threads, ThreadRows: rows}, nil
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrInputMissing, path)
	}
	return f, err
}

// Validate returns conversion errors, which must abort the run, and warnings, which must not.
func (d *Dataset) Validate() (problems, warnings []string) {
	if posts := d.Threads.PostCount(); posts != d.ThreadRows {
		problems = append(problems, fmt.Sprintf("Threads post count mismatch: %d vs %d", posts, d.ThreadRows))
	}

	missing := make(map[string]bool)
	emptyVaccineTypes := 0
	for _, rec := range d.Annotated {
		if id, ok := threadKey(rec.Get("thread_id")); ok {
			if _, found := d.Threads[id]; !found {
				missing[id] = true
			}
		}
		if isEmptyList(rec.Get(vaccineTypesColumn)) {
			emptyVaccineTypes++
		}
	}
	if len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("Thread IDs in annotated but not in threads: %d", len(missing)))
	}
	if emptyVaccineTypes > 0 {
		warnings = append(warnings, fmt.Sprintf("Records with empty vaccine_types: %d", emptyVaccineTypes))
	}
	return problems, warnings
}

func threadKey(v any) (string, bool) {
	switch id := v.(type) {
	case int64:
		return strconv.FormatInt(id, 10), true
	case float64:
		return strconv.FormatInt(int64(id), 10), true
	case string:
		n, ok := parseWhole(id)
		return strconv.FormatInt(n, 10), ok
	}
	return "", false
}

func isEmptyList(v any) bool {
	switch l := v.(type) {
	case nil:
		return true
	case []any:
		return len(l) == 0
	}
	return false
}

// Write encrypts the threads under password and writes the three artifacts into dir.
// Every run uses a fresh salt and IV.
func Write(dir, password string, d *Dataset, iterations int) (*Summary, error) {
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if problems, _ := d.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, problems[0])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	annotated, err := encodeJSON(d.Annotated, true)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, AnnotatedJSON), annotated, 0o644); err != nil {
		return nil, err
	}

	plaintext, err := encodeJSON(d.Threads, false)
	if err != nil {
		return nil, err
	}
	ciphertext, cfg, err := crypto.Seal(password, plaintext, iterations)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ThreadsEncrypted), []byte(ciphertext), 0o644); err != nil {
		return nil, err
	}

	cfgJSON, err := encodeJSON(cfg, true)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, EncryptionConfig), cfgJSON, 0o644); err != nil {
		return nil, err
	}

	return &Summary{
		Records:        len(d.Annotated),
		Threads:        len(d.Threads),
		Posts:          d.Threads.PostCount(),
		AnnotatedBytes: len(annotated),
		PlaintextBytes: len(plaintext),
		EncryptedBytes: len(ciphertext),
	}, nil
}

func encodeJSON(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
