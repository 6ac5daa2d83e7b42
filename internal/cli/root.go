// Package cli implements the convo-memory CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/memstore"
)

var (
	dbPath  string
	verbose bool
	logger  = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "convo-memory",
	Short: "Extract durable user memories from conversation transcripts",
	Long: "Turns a conversational transcript into a deduplicated set of long-term\n" +
		"user memories (preferences, emotional patterns, biographical facts) via\n" +
		"chunked LLM extraction.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	// API keys commonly live in a .env next to the transcript data
	godotenv.Load()

	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Run archive path (default: $CONVO_MEMORY_DB or ~/.convo-memory/archive.db)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("CONVO_MEMORY_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".convo-memory", "archive.db")
}

func openArchive() (*memstore.Archive, error) {
	return memstore.OpenArchive(getDBPath())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
