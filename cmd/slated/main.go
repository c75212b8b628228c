// Command slated runs the slate mutation service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slatehq/slate/internal/config"
	"github.com/slatehq/slate/internal/server"
	"github.com/slatehq/slate/internal/storage/sqlite"
)

var (
	listenAddr string
	dbPath     string
	logPath    string
)

var rootCmd = &cobra.Command{
	Use:   "slated",
	Short: "slated - slate issue tracker server",
	Long:  `The slate server owns the issue database and enforces numbering, hierarchy, and label invariants for every connected client.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Priority: flags > config file + env vars > defaults.
		if !cmd.Flags().Changed("listen") {
			listenAddr = config.GetString("listen")
		}
		if !cmd.Flags().Changed("db") && dbPath == "" {
			dbPath = config.DBPath()
		}
		if !cmd.Flags().Changed("log-file") && logPath == "" {
			logPath = config.GetString("log-file")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(server.Version)
	},
}

func serve() error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	srv := server.New(store, server.Options{
		Addr:           listenAddr,
		AttachmentsDir: config.AttachmentsDir(),
		LogPath:        logPath,
		LogMaxSizeMB:   config.GetInt("log-max-size-mb"),
		LogMaxBackups:  config.GetInt("log-max-backups"),
		LogMaxAgeDays:  config.GetInt("log-max-age-days"),
		RequestTimeout: config.GetDuration("request-timeout"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-srv.Ready():
		fmt.Fprintf(os.Stderr, "slated listening on %s (db: %s)\n", listenAddr, dbPath)
	case err := <-errCh:
		return err
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration("shutdown-timeout"))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func main() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "127.0.0.1:7333", "Address to listen on")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "Path to rotating log file")
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
