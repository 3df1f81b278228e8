package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/irgordon/threadvault/api/internal/dataset"
	"github.com/irgordon/threadvault/api/internal/infrastructure/crypto"
)

func newSealCommand() *cobra.Command {
	var (
		inputDir   string
		outputDir  string
		iterations int
	)

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Convert the CSVs and write annotated.json, threads.encrypted and encryption_config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := passwordFrom(cmd)
			if len(password) < dataset.MinPasswordLength {
				return dataset.ErrWeakPassword
			}

			logger.Info("loading csv files", slog.String("input", inputDir))
			d, err := dataset.Load(inputDir)
			if err != nil {
				return err
			}
			logger.Info("converted",
				slog.Int("annotated_records", len(d.Annotated)),
				slog.Int("thread_groups", len(d.Threads)),
				slog.Int("thread_rows", d.ThreadRows),
			)

			problems, warnings := d.Validate()
			for _, w := range warnings {
				logger.Warn(w)
			}
			if len(problems) > 0 {
				for _, p := range problems {
					logger.Error(p)
				}
				return fmt.Errorf("%w: conversion aborted", dataset.ErrValidation)
			}

			summary, err := dataset.Write(outputDir, password, d, iterations)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Output directory: %s\n", outputDir)
			fmt.Fprintf(out, "  - %s (%d records, %.1f KB)\n", dataset.AnnotatedJSON, summary.Records, float64(summary.AnnotatedBytes)/1024)
			fmt.Fprintf(out, "  - %s (%d threads, %d posts, %.1f MB)\n", dataset.ThreadsEncrypted, summary.Threads, summary.Posts, float64(summary.EncryptedBytes)/1024/1024)
			fmt.Fprintf(out, "  - %s (salt, iv, settings)\n", dataset.EncryptionConfig)
			fmt.Fprintln(out, "The password is not stored in any file.")
			return nil
		},
	}

	cmd.Flags().StringP("password", "p", "", "password for encrypting the threads (or THREADSEAL_PASSWORD)")
	cmd.Flags().StringVarP(&inputDir, "input", "i", ".", "directory holding "+dataset.AnnotatedCSV+" and "+dataset.ThreadsCSV)
	cmd.Flags().StringVarP(&outputDir, "output", "o", filepath.Join(".", "data"), "directory for the generated artifacts")
	cmd.Flags().IntVar(&iterations, "iterations", crypto.DefaultIterations, "PBKDF2 iterations")
	return cmd
}
