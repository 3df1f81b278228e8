package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Optional; THREADSEAL_PASSWORD may come from here.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "threadseal",
		Short:         "Convert thread CSV exports into encrypted viewer artifacts",
		Version:       versioninfo.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSealCommand(), newVerifyCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func passwordFrom(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p
	}
	return os.Getenv("THREADSEAL_PASSWORD")
}
