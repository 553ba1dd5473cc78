package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Maaaxiii/toolchat/internal/app"
	"github.com/Maaaxiii/toolchat/internal/chat"
	"github.com/Maaaxiii/toolchat/internal/config"
	"github.com/Maaaxiii/toolchat/internal/log"
)

var chatVerbose bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelWarn
	if chatVerbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	// Refuse to start when the backend cannot serve; the status message says
	// what the user can do about it.
	if status := a.Sessions.Status(ctx); !status.Available() {
		fmt.Fprintln(os.Stderr, status.Message())
		return fmt.Errorf("assistant unavailable: %s", status)
	}

	if cfg.Prewarm {
		a.Sessions.Prewarm(ctx)
	}

	// Streaming snapshots are cumulative; print only the new suffix so the
	// reply appears to type itself out.
	var printed string
	mgr, err := a.CreateManager(func(snapshot string) {
		if strings.HasPrefix(snapshot, printed) {
			fmt.Print(snapshot[len(printed):])
		} else {
			fmt.Print(snapshot)
		}
		printed = snapshot
	})
	if err != nil {
		return fmt.Errorf("creating conversation manager: %w", err)
	}

	conv := mgr.CreateConversation(ctx, "")
	if mgr.LastError() != "" {
		fmt.Fprintln(os.Stderr, mgr.LastError())
	}

	fmt.Println("toolchat — type /help for commands, Ctrl+D to quit")
	fmt.Printf("Conversation: %s\n\n", conv.Title)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleCommand(ctx, input, a, mgr) {
				break
			}
			continue
		}

		printed = ""
		fmt.Print("assistant: ")
		if _, err := mgr.SendMessage(ctx, input); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			continue
		}
		fmt.Println()
		if lastErr := mgr.LastError(); lastErr != "" {
			fmt.Fprintln(os.Stderr, lastErr)
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("reading input: %w", err)
	}

	return nil
}

// handleCommand dispatches a slash command, returning true to exit the loop.
func handleCommand(ctx context.Context, input string, a *app.App, mgr *chat.Manager) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help            show this help")
		fmt.Println("  /new [title]     start a new conversation")
		fmt.Println("  /clear           clear the current conversation")
		fmt.Println("  /rename <title>  rename the current conversation")
		fmt.Println("  /history         show the current conversation")
		fmt.Println("  /tools           list tools and whether they are enabled")
		fmt.Println("  /toggle <name>   enable or disable a tool")
		fmt.Println("  /exit            quit")
		fmt.Println()

	case "/new":
		title := strings.TrimSpace(strings.TrimPrefix(input, "/new"))
		conv := mgr.CreateConversation(ctx, title)
		if mgr.LastError() != "" {
			fmt.Fprintln(os.Stderr, mgr.LastError())
		}
		fmt.Printf("Started %s\n\n", conv.Title)

	case "/clear":
		if err := mgr.ClearConversation(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		fmt.Println("Conversation cleared.")
		fmt.Println()

	case "/rename":
		conv := mgr.Current()
		if conv == nil {
			fmt.Println("No active conversation.")
			break
		}
		title := strings.TrimSpace(strings.TrimPrefix(input, "/rename"))
		if title == "" {
			fmt.Println("Usage: /rename <title>")
			break
		}
		if err := mgr.RenameConversation(ctx, conv.ID, title); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		fmt.Printf("Renamed to %q\n\n", title)

	case "/history":
		conv := mgr.Current()
		if conv == nil || len(conv.Turns) == 0 {
			fmt.Println("No messages yet")
			break
		}
		for _, t := range conv.Turns {
			speaker := "assistant"
			if t.FromUser {
				speaker = "you"
			}
			fmt.Printf("[%s] %s\n", speaker, t.Text)
		}
		fmt.Println()

	case "/tools":
		printToolList(a)

	case "/toggle":
		if len(parts) < 2 {
			fmt.Println("Usage: /toggle <name>")
			break
		}
		name := parts[1]
		a.Registry.Toggle(name)
		if _, known := a.Registry.Lookup(name); !known {
			fmt.Printf("Note: %q is not a known tool; the toggle takes effect if it is registered later.\n", name)
		}
		// Rebuild now so the next message already uses the new subset.
		if err := a.Sessions.EnsureCurrentSession(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		printToolList(a)

	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true

	default:
		fmt.Printf("Unknown command: %s\n", parts[0])
		fmt.Println("Type /help to see available commands")
		fmt.Println()
	}

	return false
}

func printToolList(a *app.App) {
	fmt.Println("Tools:")
	for _, c := range a.Registry.Known() {
		state := "off"
		if a.Registry.IsEnabled(c.Name()) {
			state = "on"
		}
		fmt.Printf("  [%s] %s - %s\n", state, c.Name(), c.Description())
	}
	fmt.Println()
}
