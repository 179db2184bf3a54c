// Package cmd contains the CLI entry points. All application logic lives
// here and below; main.go stays a minimal shim.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumencrm/lumen/internal/app"
	"github.com/lumencrm/lumen/internal/config"
	"github.com/lumencrm/lumen/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.0.1"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the lumen CLI. It routes the first
// argument to a command; with no argument it starts the interactive chat.
func Execute() error {
	// version and help must work even when config is invalid.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := checkRequiredEnv(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "chat":
			return runChat(ctx, a)
		case "ingest":
			return runIngest(ctx, a, os.Args[2:])
		case "watch":
			return runWatch(ctx, a)
		case "search":
			return runSearch(ctx, a, os.Args[2:])
		default:
			printHelp()
			return fmt.Errorf("unknown command: %s", os.Args[1])
		}
	}

	return runChat(ctx, a)
}

// initLogger builds the structured logger. DEBUG in the environment enables
// debug level; logs go to stderr so stdout stays clean for chat output.
func initLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level})
}

// checkRequiredEnv verifies the environment variables the AI provider needs.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Lumen requires a Gemini API key to function.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")
		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}

func printVersionInfo() error {
	fmt.Printf("Lumen v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

func printHelp() {
	fmt.Println("Lumen - knowledge-grounded CRM assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lumen                  Start interactive chat (default)")
	fmt.Println("  lumen chat             Start interactive chat")
	fmt.Println("  lumen ingest <path>    Ingest a file or directory into the knowledge base")
	fmt.Println("  lumen watch            Watch the configured directory and ingest new files")
	fmt.Println("  lumen search <query>   Search the knowledge base")
	fmt.Println("  lumen version          Show version information")
	fmt.Println("  lumen help             Show this help")
	fmt.Println()
	fmt.Println("Interactive Commands:")
	fmt.Println("  /help              Show available commands")
	fmt.Println("  /history           Show conversation history grouped by day")
	fmt.Println("  /clear             Clear conversation history")
	fmt.Println("  /exit, /quit       Exit")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
}
