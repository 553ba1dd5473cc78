package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Maaaxiii/toolchat/internal/app"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the assistant's tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			for _, c := range a.Registry.Known() {
				state := "enabled"
				if !a.Registry.IsEnabled(c.Name()) {
					state = "disabled"
				}
				fmt.Printf("%-12s %-9s %s\n", c.Name(), state, c.Description())
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
