// Package main provides the entry point for the recruiting engine HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recruit_agent",
	Short: "Recruiting engine HTTP API server",
	Long:  "Recruiting engine tracks applications and candidates, books interviews, and drafts and publishes LinkedIn posts via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
