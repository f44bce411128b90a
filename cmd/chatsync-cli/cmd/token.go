package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/admitdesk/chatsync/internal/auth"
)

var tokenValidity time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a development access token",
	Long: `Generate a signed access token for local development.

The token is signed with the CHATSYNC_JWT_SECRET environment variable,
which must match the secret the server was started with.

Examples:
  chatsync-cli token --user alice
  chatsync-cli token --user alice --validity 1h`,
	Run: tokenHandler,
}

func tokenHandler(cmd *cobra.Command, args []string) {
	if userID == "" {
		fmt.Fprintln(os.Stderr, "Error: --user is required")
		os.Exit(1)
	}
	secret := os.Getenv("CHATSYNC_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: CHATSYNC_JWT_SECRET is not set")
		os.Exit(1)
	}

	issuer := auth.NewAuthenticator(secret, "chatsync", tokenValidity)
	signed, err := issuer.GenerateToken(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenValidity, "validity", 24*time.Hour, "How long the token stays valid")
	rootCmd.AddCommand(tokenCmd)
}
