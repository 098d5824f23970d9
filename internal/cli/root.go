// Package cli implements the recolte CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/recolte"
)

var (
	dbPath     string
	filesDir   string
	configPath string
	quiet      bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "recolte",
	Short: "Ingest URLs into a local, searchable catalog",
	Long:  "recolte fetches content from URLs, deduplicates it by content hash, extracts text, and indexes everything in a tag-organized SQLite catalog.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Catalog path (default: $RECOLTE_DB or ~/.recolte/recolte.db)")
	RootCmd.PersistentFlags().String("files", "", "Original files directory (default: next to the catalog)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
	cobra.OnInitialize(func() {
		filesDir, _ = RootCmd.PersistentFlags().GetString("files")
	})
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("RECOLTE_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recolte", "recolte.db")
}

func openService() (*recolte.Service, error) {
	cfg, err := recolte.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg.DatabasePath = getDBPath()
	if filesDir != "" {
		cfg.FilesDir = filesDir
	} else {
		cfg.FilesDir = filepath.Join(filepath.Dir(cfg.DatabasePath), "files")
	}

	level := slog.LevelWarn
	if quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return recolte.New(cfg, logger)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
