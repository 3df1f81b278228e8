package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

func main() {
	fmt.Println("threadvault: running artifact posture audit...")

	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: no .env file found, checking system env vars...")
	}

	configPath := getEnv("CONFIG_PATH", domain.DefaultConfigPath)
	dir := filepath.Join(getEnv("DATA_ROOT", "."), filepath.Dir(configPath))
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	r := audit(auditInput{
		Dir:           dir,
		ConfigFile:    filepath.Base(configPath),
		ThreadsFile:   filepath.Base(getEnv("THREADS_PATH", domain.DefaultThreadsPath)),
		AnnotatedFile: filepath.Base(getEnv("ANNOTATED_PATH", domain.DefaultAnnotatedPath)),
		Env:           getEnv("THREADVAULT_ENV", "production"),
		CORSOrigins:   os.Getenv("CORS_ALLOWED_ORIGINS"),
	})

	for _, p := range r.Passes {
		fmt.Println("PASS: " + p)
	}
	for _, f := range r.Failures {
		fmt.Println("FAIL: " + f)
	}

	fmt.Println("--------------------------------------------------")
	if len(r.Failures) > 0 {
		fmt.Println("VERDICT: ARTIFACT POSTURE FAILED.")
		os.Exit(1)
	}
	fmt.Println("VERDICT: ARTIFACTS VALIDATED.")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
