// Package cmd is a minimal illustrative CLI front end over the
// detection core's single public operation. The CLI itself is an
// external collaborator, not core scope: it owns flag parsing and
// terminal presentation, and calls into internal/pipeline for
// everything else.
//
// Uses a cobra root command with persistent flags for db path,
// threshold, and worker count.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"duplifind/internal/cache"
)

var (
	dbPath    string
	threshold int
	workers   int
	noCache   bool
)

var rootCmd = &cobra.Command{
	Use:   "duplifind",
	Short: "Find duplicate and visually similar images",
	Long: `duplifind detects byte-identical and perceptually similar images across
a directory tree and ranks each duplicate group's members by quality.

Example usage:
  duplifind scan ./photos   # Scan a folder for duplicates`,
}

// Execute runs the CLI; on any error it prints to stderr and exits 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultDB, err := cache.DefaultPath()
	if err != nil {
		defaultDB = ".duplicate_finder_cache.db"
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "path to the analysis cache database")
	rootCmd.PersistentFlags().IntVar(&threshold, "threshold", 10, "Hamming distance threshold (0-64, lower = stricter)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 4, "number of parallel analyzer workers")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "bypass the analysis cache")
}
