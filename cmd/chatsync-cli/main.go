package main

import "github.com/admitdesk/chatsync/cmd/chatsync-cli/cmd"

func main() {
	cmd.Execute()
}
