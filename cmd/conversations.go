package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Maaaxiii/toolchat/internal/app"
	"github.com/Maaaxiii/toolchat/internal/config"
	"github.com/Maaaxiii/toolchat/internal/log"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			convs, err := a.Store.ListConversations(ctx)
			if err != nil {
				return err
			}
			if len(convs) == 0 {
				fmt.Println("No conversations.")
				return nil
			}
			for _, c := range convs {
				fmt.Printf("%s  %-40s  %s\n    %s\n",
					c.ID, c.Title, c.UpdatedAt.Format("2006-01-02 15:04"), c.Preview())
			}
			return nil
		})
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation id: %w", err)
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Store.DeleteConversation(ctx, id); err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		})
	},
}

var conversationsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation id: %w", err)
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			mgr, err := a.CreateManager(nil)
			if err != nil {
				return err
			}
			if err := mgr.RenameConversation(ctx, id, args[1]); err != nil {
				return err
			}
			fmt.Println("Renamed.")
			return nil
		})
	},
}

func init() {
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	conversationsCmd.AddCommand(conversationsRenameCmd)
	rootCmd.AddCommand(conversationsCmd)
}

// withApp sets up the application for a one-shot command and tears it down
// afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{Level: slog.LevelWarn})
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	return fn(ctx, a)
}
