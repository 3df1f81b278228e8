package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/irgordon/threadvault/api/internal/core/domain"
	"github.com/irgordon/threadvault/api/internal/dataset"
	"github.com/irgordon/threadvault/api/internal/infrastructure/crypto"
)

func newVerifyCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Decrypt generated artifacts with the password and report what they hold",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := passwordFrom(cmd)
			if password == "" {
				return domain.ErrEmptyPassword
			}

			raw, err := os.ReadFile(filepath.Join(dir, dataset.EncryptionConfig))
			if err != nil {
				return err
			}
			var cfg domain.EncryptionConfig
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
			}

			ciphertext, err := os.ReadFile(filepath.Join(dir, dataset.ThreadsEncrypted))
			if err != nil {
				return err
			}

			svc := crypto.NewThreadService()
			key, err := svc.Derive(password, &cfg)
			if err != nil {
				return err
			}
			defer crypto.Zero(key)

			store, err := svc.Decrypt(key, &cfg, string(ciphertext))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d threads, %d posts (%d iterations)\n", len(store), store.PostCount(), cfg.Iterations)
			return nil
		},
	}

	cmd.Flags().StringP("password", "p", "", "password the threads were encrypted with (or THREADSEAL_PASSWORD)")
	cmd.Flags().StringVarP(&dir, "dir", "d", filepath.Join(".", "data"), "directory holding the artifacts")
	return cmd
}
