package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lumencrm/lumen/internal/app"
	"github.com/lumencrm/lumen/internal/document"
	"github.com/lumencrm/lumen/internal/knowledge"
)

// ingestOwner tags documents ingested from the local CLI.
const ingestOwner = "local"

// runIngest ingests a file, or every supported file in a directory.
func runIngest(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: lumen ingest <path>")
	}
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}

	if !info.IsDir() {
		return ingestFile(ctx, a, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	var ingested, skipped int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := filepath.Join(path, entry.Name())
		if docTypeFor(file) == "" {
			skipped++
			continue
		}
		if err := ingestFile(ctx, a, file); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", file, err)
			continue
		}
		ingested++
	}
	fmt.Printf("Ingested %d file(s), skipped %d unsupported.\n", ingested, skipped)
	return nil
}

func ingestFile(ctx context.Context, a *app.App, path string) error {
	docType := docTypeFor(path)
	if docType == "" {
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	name := filepath.Base(path)
	id, err := a.Ingestor.Ingest(ctx, document.Document{
		Title:   strings.TrimSuffix(name, filepath.Ext(name)),
		Content: string(data),
		Type:    docType,
		Source:  path,
		OwnerID: ingestOwner,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %s (id: %s)\n", path, id)
	return nil
}

func docTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return knowledge.TypeText
	case ".md", ".markdown":
		return knowledge.TypeMarkdown
	case ".html", ".htm":
		return knowledge.TypeHTML
	default:
		return ""
	}
}
