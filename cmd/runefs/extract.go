package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/runetools/runefs"
	"github.com/runetools/runefs/internal/utils"
	"github.com/runetools/runefs/jag"
)

type ExtractionStats struct {
	StartTime     time.Time
	Archives      int
	Files         int
	BytesWritten  int64
	ArchiveErrors int
}

var extractIndices []int

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Dump every asset in the cache to disk",
	Long: `Extract walks every index (or just those named with --indices), materializes
each archive and writes the decoded files to the output directory as
<output>/<index>/<archive>/<file>.

Archives that fail to decode are logged and skipped so one corrupt chain does
not abort a bulk dump.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats := &ExtractionStats{StartTime: time.Now()}

		fs, err := runefs.Open(cfg.Cache)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer fs.Close()

		indices := extractIndices
		if len(indices) == 0 {
			for id := 0; id < fs.IndexCount(); id++ {
				indices = append(indices, id)
			}
		}

		total := 0
		for _, id := range indices {
			index, err := fs.Index(id)
			if err != nil {
				return err
			}
			total += index.ArchiveCount()
		}

		progress := utils.NewProgress("extracting", total, !noProgress)

		for _, id := range indices {
			if err := extractIndex(fs, id, stats, progress); err != nil {
				return err
			}
		}

		progress.Finish()

		slog.Info("Extraction complete",
			"archives", stats.Archives,
			"files", stats.Files,
			"bytes", stats.BytesWritten,
			"failed_archives", stats.ArchiveErrors,
			"elapsed", time.Since(stats.StartTime).Round(time.Millisecond))
		return nil
	},
}

func extractIndex(fs *runefs.FileSystem, id int, stats *ExtractionStats, progress *utils.Progress) error {
	index, err := fs.Index(id)
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.Output, fmt.Sprintf("%d", id))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	// Archive materialization is serialized per index by the index's mutex;
	// workers hand the materialized archives to a single writer goroutine.
	g := new(errgroup.Group)
	g.SetLimit(cfg.Workers)

	results := make(chan archiveResult, cfg.Workers)
	done := make(chan error, 1)
	go func() {
		done <- writeArchives(dir, results, stats, progress)
	}()

	for _, archiveID := range index.ArchiveIDs() {
		g.Go(func() error {
			archive, err := index.Archive(archiveID)
			if err != nil {
				slog.Warn("Skipping archive", "index", id, "archive", archiveID, "error", err)
				results <- archiveResult{id: archiveID, err: err}
				return nil
			}
			results <- archiveResult{id: archiveID, files: archive.Files()}
			return nil
		})
	}

	// Producers never fail the group; per-archive errors flow through results.
	_ = g.Wait()
	close(results)
	return <-done
}

type archiveResult struct {
	id    uint32
	files []jag.FileData
	err   error
}

func writeArchives(dir string, results <-chan archiveResult, stats *ExtractionStats, progress *utils.Progress) error {
	// Keep draining after a write error so the producers never block on a
	// full channel.
	var firstErr error
	for res := range results {
		progress.Increment()
		if res.err != nil {
			stats.ArchiveErrors++
			continue
		}
		if firstErr != nil {
			continue
		}
		if err := writeArchive(dir, res, stats); err != nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeArchive(dir string, res archiveResult, stats *ExtractionStats) error {
	archiveDir := filepath.Join(dir, fmt.Sprintf("%d", res.id))
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	for _, file := range res.files {
		path := filepath.Join(archiveDir, fmt.Sprintf("%d", file.ID))
		if err := os.WriteFile(path, file.Contents, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		stats.Files++
		stats.BytesWritten += int64(len(file.Contents))
	}
	stats.Archives++
	return nil
}

func init() {
	extractCmd.Flags().IntSliceVar(&extractIndices, "indices", nil, "comma-separated list of index ids to extract (default all)")
	rootCmd.AddCommand(extractCmd)
}
