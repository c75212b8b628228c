// Command slate is the CLI client for the slate issue tracker.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/config"
)

var (
	serverURL  string
	jsonOutput bool
	apiClient  *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "slate",
	Short: "slate - Lightweight issue tracker",
	Long:  `A fast issue tracker with projects, labels, sub-issues, and full-text search. Talks to a slated server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Priority: flags > config file + env vars > defaults.
		if !cmd.Flags().Changed("server") {
			serverURL = config.GetString("server-url")
		}
		if !cmd.Flags().Changed("json") {
			jsonOutput = config.GetBool("json")
		}
		apiClient = client.New(serverURL)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print client and server versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("slate %s\n", client.Version)
		serverVersion, err := apiClient.Health(cmdContext())
		if err != nil {
			fmt.Printf("server: unreachable (%v)\n", err)
			return
		}
		fmt.Printf("server: %s\n", serverVersion)
	},
}

func cmdContext() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	// The process exits when the command returns; the context just bounds it.
	_ = cancel
	return ctx
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("failed to encode JSON: %v", err)
	}
	fmt.Println(string(data))
}

func main() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:7333", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(projectCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
