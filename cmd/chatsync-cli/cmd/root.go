package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/admitdesk/chatsync/internal/auth"
)

var (
	serverURL string
	userID    string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "chatsync-cli",
	Short: "Chatsync CLI tool",
	Long: `Chatsync CLI is a command-line client for the chatsync server.

Available commands:
  send     Send a message to another user
  tail     Follow a conversation live
  token    Generate a development access token

Use "chatsync-cli [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Base URL of the chatsync server")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User id to act as")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("CHATSYNC_TOKEN"), "Access token (defaults to CHATSYNC_TOKEN)")
}

// identity assembles the caller identity from the persistent flags,
// exiting with a usage error when either half is missing.
func identity() auth.Identity {
	if userID == "" || token == "" {
		fmt.Fprintln(os.Stderr, "Error: both --user and --token are required")
		os.Exit(1)
	}
	return auth.Identity{UserID: userID, Token: token}
}

// wsEndpoint derives the websocket endpoint from the server base URL.
func wsEndpoint() string {
	base := strings.TrimSuffix(serverURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/ws/chat"
}
