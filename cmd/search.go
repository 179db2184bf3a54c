package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumencrm/lumen/internal/app"
	"github.com/lumencrm/lumen/internal/knowledge"
)

// runSearch runs a one-off similarity search and prints the matches.
func runSearch(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: lumen search <query>")
	}
	query := strings.Join(args, " ")

	passages, err := a.Retriever.Retrieve(ctx, query, knowledge.DefaultTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(passages) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, p := range passages {
		fmt.Printf("%d. %s (score %.3f)\n", i+1, p.Title, p.Score)
		if p.Source != "" {
			fmt.Printf("   source: %s\n", p.Source)
		}
		fmt.Printf("   %s\n\n", snippet(p.Content, 200))
	}
	return nil
}

// snippet truncates content to max runes on a rune boundary.
func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
