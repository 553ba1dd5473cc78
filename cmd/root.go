// Package cmd contains the toolchat CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "toolchat",
	Short: "toolchat - a tool-calling AI chat assistant",
	Long: `toolchat is a conversational assistant with tool calling.

The model can consult the current time, weather, and a persistent memory
while answering. Conversations are stored in PostgreSQL.

Running toolchat with no arguments starts an interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
