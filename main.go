package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/lumencrm/lumen/cmd"
)

func main() {
	// Best-effort: a missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
