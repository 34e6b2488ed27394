package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "roomchat",
		Short:         "Real-time chat rooms with ordered history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "roomchat:", err)
		os.Exit(1)
	}
}
