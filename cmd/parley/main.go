package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/chatcmd"
	"github.com/papercomputeco/parley/cmd/parley/servecmd"
)

func main() {
	root := &cobra.Command{
		Use:   "parley",
		Short: "An interactive AI assistant front-end",
		Long: `parley is an interactive assistant front-end: it forwards free-text
input to a chat completion endpoint and renders the response as a
conversation log with source annotations.

Credentials are resolved by name from a line-oriented NAME=value keys
resource, loaded once per process.`,
		SilenceUsage: true,
	}

	root.AddCommand(servecmd.NewServeCmd())
	root.AddCommand(chatcmd.NewChatCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
