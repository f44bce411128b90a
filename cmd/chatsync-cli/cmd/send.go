package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/admitdesk/chatsync/internal/history"
	"github.com/admitdesk/chatsync/internal/session"
)

var sendCmd = &cobra.Command{
	Use:   "send <peer> <text>",
	Short: "Send a message to another user",
	Long: `Send a message to another user over the live websocket channel.

The command opens a conversation session, sends the message, and waits
for the server to echo back the persisted copy before exiting.

Examples:
  chatsync-cli send --user alice --token $TOKEN bob "Hello"`,
	Args: cobra.ExactArgs(2),
	Run:  sendHandler,
}

func sendHandler(cmd *cobra.Command, args []string) {
	peer, text := args[0], args[1]
	me := identity()

	fetcher := history.NewClient(serverURL, me.Token)
	sess := session.New(me, wsEndpoint(), session.NewWebsocketTransport(), fetcher, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sess.Open(ctx, me.UserID, peer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open conversation: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	pending, err := sess.Send(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to send: %v\n", err)
		os.Exit(1)
	}

	// Wait for the server echo to replace the optimistic entry.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-deadline:
			fmt.Fprintln(os.Stderr, "Warning: no server confirmation received, message may not be persisted")
			os.Exit(1)
		case <-tick.C:
			for _, m := range sess.Messages() {
				if m.ID == pending.ID && m.Failed {
					fmt.Fprintln(os.Stderr, "Error: server rejected the message")
					os.Exit(1)
				}
				if !m.Pending() && m.SenderID == me.UserID && m.Text == text {
					fmt.Printf("Sent %s\n", m.ID)
					return
				}
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
