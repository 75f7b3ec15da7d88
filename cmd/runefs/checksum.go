package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/runetools/runefs"
)

var checksumOut string

var checksumCmd = &cobra.Command{
	Use:   "checksum",
	Short: "Emit the cache's checksum manifest",
	Long: `Checksum builds the manifest clients use to detect out-of-date caches:
CRC-32 and revision per index, with whirlpool digests and the trailing table
digest when --whirlpool is set. The raw table is written to --out, or printed
as hex on stdout when no file is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := runefs.Open(cfg.Cache)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer fs.Close()

		if err := fs.BuildChecksumTable(cfg.Whirlpool); err != nil {
			return fmt.Errorf("building checksum table: %w", err)
		}
		table := fs.ChecksumTable()

		if checksumOut == "" {
			fmt.Println(hex.EncodeToString(table))
			return nil
		}
		if err := os.WriteFile(checksumOut, table, 0644); err != nil {
			return fmt.Errorf("writing checksum table: %w", err)
		}
		slog.Info("Checksum table written", "path", checksumOut, "bytes", len(table), "whirlpool", cfg.Whirlpool)
		return nil
	},
}

func init() {
	checksumCmd.Flags().StringVar(&checksumOut, "out", "", "file to write the raw table to (hex on stdout when empty)")
	rootCmd.AddCommand(checksumCmd)
}
