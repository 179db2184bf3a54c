package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lumencrm/lumen/internal/app"
	"github.com/lumencrm/lumen/internal/session"
)

// runChat runs the interactive conversation loop on stdin/stdout.
func runChat(ctx context.Context, a *app.App) error {
	fmt.Printf("Lumen v%s - type /help for commands\n\n", AppVersion)

	// The session opens on its seeded welcome (or the reloaded log).
	for _, msg := range a.Sessions.Messages() {
		printMessage(msg)
	}
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nGoodbye!")
			return nil
		default:
		}

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
			if handleCommand(input, a) {
				break
			}
			continue
		}

		reply, err := a.Assistant.SubmitAndWait(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		printMessage(reply)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// handleCommand handles slash commands, returns true to exit.
func handleCommand(cmd string, a *app.App) bool {
	switch strings.Fields(cmd)[0] {
	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /help      Show this help")
		fmt.Println("  /history   Show conversation history grouped by day")
		fmt.Println("  /clear     Clear conversation history")
		fmt.Println("  /exit      Exit")
		fmt.Println()

	case "/history":
		fmt.Print(renderHistory(a.Sessions.GroupedHistory()))

	case "/clear":
		a.Assistant.ClearHistory()
		fmt.Println("Conversation cleared.")
		fmt.Println()

	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true

	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		fmt.Println("Type /help to see available commands")
		fmt.Println()
	}
	return false
}

func printMessage(msg session.Message) {
	if msg.IsUser {
		fmt.Printf("You: %s\n", msg.Content)
	} else {
		fmt.Printf("Lumen: %s\n", msg.Content)
	}
}

// renderHistory formats day groups with date separators.
func renderHistory(groups []session.DayGroup) string {
	if len(groups) == 0 {
		return "No conversation history yet.\n\n"
	}

	var b strings.Builder
	for _, group := range groups {
		fmt.Fprintf(&b, "--- %s ---\n", group.Day.Format("Monday, 02 Jan 2006"))
		for _, msg := range group.Messages {
			speaker := "Lumen"
			if msg.IsUser {
				speaker = "You"
			}
			fmt.Fprintf(&b, "[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04"), speaker, msg.Content)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
