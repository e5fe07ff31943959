package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"duplifind/internal/cache"
	"duplifind/internal/decode"
	"duplifind/internal/driver"
	"duplifind/internal/models"
	"duplifind/internal/pipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Scan a folder for duplicate and similar images",
	Long: `Scan a folder recursively, compute content and perceptual hashes, and
report exact and near-duplicate groups ranked by quality.

Example:
  duplifind scan ./photos
  duplifind scan /path/to/images --threshold 5`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	absFolder, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	var store *cache.Store
	if !noCache {
		store, err = cache.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer store.Close()
	}

	lastLine := ""
	opts := pipeline.DefaultOptions()
	opts.Threshold = threshold
	opts.Workers = workers
	opts.UseCache = !noCache
	opts.ProgressFn = func(p driver.Progress) {
		if lastLine != "" {
			fmt.Print("\r" + strings.Repeat(" ", len(lastLine)) + "\r")
		}
		lastLine = fmt.Sprintf("analyzed %d (cache hits %d, errors %d) %.1f/s", p.Analyzed, p.CacheHits, p.Errors, p.RecordsPerSecond)
		fmt.Print(lastLine)
	}

	result, err := pipeline.Scan(context.Background(), absFolder, store, decode.Default(), opts)
	if lastLine != "" {
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Scan Complete ===")
	fmt.Printf("Files analyzed:   %d\n", len(result.Records))
	fmt.Printf("Errors:           %d\n", len(result.Errors))
	fmt.Printf("Duplicate groups: %d\n", len(result.Groups))

	var exact, perceptual int
	var savings int64
	for _, g := range result.Groups {
		if g.Kind == models.GroupExact {
			exact++
		} else {
			perceptual++
		}
		savings += g.PotentialSavingsBytes
	}
	fmt.Printf("  exact:          %d\n", exact)
	fmt.Printf("  perceptual:     %d\n", perceptual)
	fmt.Printf("Potential savings: %d bytes\n", savings)
	if result.CacheDegraded {
		fmt.Println("warning: analysis cache degraded during this scan")
	}

	return nil
}
