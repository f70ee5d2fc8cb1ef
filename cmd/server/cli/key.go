package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/services"
)

func newKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
	}
	cmd.AddCommand(newKeyGenerateCmd(a))
	return cmd
}

func newKeyGenerateCmd(a *app) *cobra.Command {
	var email, keyType string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue an API key for an existing user",
		Long:  "Issue a live or test key for the user with the given email. The raw key is printed once and cannot be retrieved again.",
		Example: `  gamevault key generate --email dev@example.com
  gamevault key generate --email dev@example.com --type test`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeyGenerate(cmd.Context(), cmd.OutOrStdout(), email, keyType)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Owner's email address (required)")
	cmd.Flags().StringVar(&keyType, "type", "live", "Key type: live or test")
	cmd.MarkFlagRequired("email")

	return cmd
}

func (a *app) runKeyGenerate(ctx context.Context, out io.Writer, email, keyType string) error {
	var prefix string
	switch keyType {
	case "live":
		prefix = services.LiveKeyPrefix
	case "test":
		prefix = services.TestKeyPrefix
	default:
		return fmt.Errorf("invalid key type %q (want live or test)", keyType)
	}

	cfg, err := a.config()
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no user with email %q", email)
	}
	if err != nil {
		return err
	}

	issued, err := services.NewKeyService(db).Generate(ctx, user.ID, prefix)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "API key created for %s\n", user.Email)
	fmt.Fprintf(out, "  ID:  %s\n", issued.ID)
	fmt.Fprintf(out, "  Key: %s\n", issued.RawKey)
	fmt.Fprintln(out, "Store it now; it will not be shown again.")
	return nil
}
