package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runetools/runefs"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize the cache's indices",
	Long: `Info opens the cache and prints one line per index: protocol version,
revision, archive count, entry count and which side tables (name hashes,
whirlpool digests) the manifest carries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := runefs.Open(cfg.Cache)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer fs.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tPROTOCOL\tREVISION\tARCHIVES\tENTRIES\tNAMED\tWHIRLPOOL")
		for id := 0; id < fs.IndexCount(); id++ {
			index, err := fs.Index(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%t\t%t\n",
				index.ID(), index.Protocol(), index.Revision(),
				index.ArchiveCount(), index.EntryCount(),
				index.Named(), index.Whirlpool())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
