package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/admitdesk/chatsync/internal/history"
	"github.com/admitdesk/chatsync/internal/session"
)

var tailLimit int

var tailCmd = &cobra.Command{
	Use:   "tail <peer>",
	Short: "Follow a conversation live",
	Long: `Follow a conversation live.

The command loads recent history, prints it oldest first, and then keeps
printing messages as they arrive until interrupted with Ctrl-C.

Examples:
  chatsync-cli tail --user alice --token $TOKEN bob
  chatsync-cli tail --user alice --token $TOKEN bob --limit 100`,
	Args: cobra.ExactArgs(1),
	Run:  tailHandler,
}

func tailHandler(cmd *cobra.Command, args []string) {
	peer := args[0]
	me := identity()

	fetcher := history.NewClient(serverURL, me.Token)
	sess := session.New(me, wsEndpoint(), session.NewWebsocketTransport(), fetcher, tailLimit)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sess.Open(ctx, me.UserID, peer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open conversation: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	if err := sess.HistoryErr(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history unavailable: %v\n", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	printed := 0
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-quit:
			return
		case <-tick.C:
			messages := sess.Messages()
			for ; printed < len(messages); printed++ {
				m := messages[printed]
				if m.Pending() {
					continue
				}
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.SenderID, m.Text)
			}
		}
	}
}

func init() {
	tailCmd.Flags().IntVarP(&tailLimit, "limit", "l", 50, "Number of history messages to load")
	rootCmd.AddCommand(tailCmd)
}
