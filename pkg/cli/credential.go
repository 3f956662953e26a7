package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/storage"
)

// NewCredentialCommand creates the credential command group. Secrets live in
// the system keyring; only metadata is stored in the database.
func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage stored credentials",
	}
	cmd.AddCommand(newCredentialAddCommand())
	cmd.AddCommand(newCredentialListCommand())
	cmd.AddCommand(newCredentialDeleteCommand())
	return cmd
}

func newCredentialAddCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Store a credential (secret read from stdin)",
		Long: `Store a credential. The secret is read from stdin so it never appears
in shell history or process listings.

Examples:
  echo -n "$OPENROUTER_API_KEY" | conduit credential add openrouter-main --kind openrouter
  echo -n "$BOT_TOKEN" | conduit credential add support-bot --kind telegram`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credKind, err := parseCredentialKind(kind)
			if err != nil {
				return err
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			secret, err := reader.ReadString('\n')
			if err != nil && secret == "" {
				return fmt.Errorf("failed to read secret from stdin: %w", err)
			}
			secret = strings.TrimRight(secret, "\r\n")
			if secret == "" {
				return fmt.Errorf("secret cannot be empty")
			}

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			cred, err := a.credentials.Create(context.Background(),
				types.UserID(GlobalConfig.User), args[0], credKind, secret)
			if err != nil {
				return err
			}

			fmt.Printf("Stored credential %q\n  id: %s\n", cred.Name, cred.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Credential kind: openrouter or telegram (required)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newCredentialListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List credentials (metadata only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			credentials, err := a.credentials.List(context.Background(), types.UserID(GlobalConfig.User))
			if err != nil {
				return err
			}
			if len(credentials) == 0 {
				fmt.Println("No credentials found.")
				return nil
			}

			for _, cred := range credentials {
				fmt.Printf("%s  %-12s %-25s %s\n",
					cred.ID, cred.Kind, cred.Name,
					cred.CreatedAt.Local().Format(time.DateOnly))
			}
			return nil
		},
	}
}

func newCredentialDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <credential-id>",
		Short: "Delete a credential and its secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.credentials.Delete(context.Background(),
				types.CredentialID(args[0]), types.UserID(GlobalConfig.User))
			if err != nil {
				return err
			}

			fmt.Println("Credential deleted.")
			return nil
		},
	}
}

func parseCredentialKind(kind string) (storage.CredentialKind, error) {
	switch strings.ToLower(kind) {
	case "openrouter":
		return storage.CredentialOpenRouter, nil
	case "telegram":
		return storage.CredentialTelegram, nil
	default:
		return "", fmt.Errorf("unknown credential kind %q (expected openrouter or telegram)", kind)
	}
}
