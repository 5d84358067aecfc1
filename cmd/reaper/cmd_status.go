package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solarekm/reaper/storage"
	"github.com/solarekm/reaper/wal"
)

var statusJournalPath string

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the latest verdict for every evaluated instance",
	Long: `Read the local evaluation journal and print the most recent verdict
for each instance the reaper has looked at, plus audit WAL statistics
when a WAL directory is configured.

The journal is advisory: it reflects what past sweeps concluded, not
what the next sweep will do.`,
	Example: `  reaper status                         # Journal from config
  reaper status --journal reaper.db     # Explicit journal file`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusJournalPath, "journal", "", "Journal path (overrides config)")
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.JournalPath
	if statusJournalPath != "" {
		path = statusJournalPath
	}
	if path == "" {
		return fmt.Errorf("no journal configured: set journal_path or --journal")
	}

	journal, err := storage.OpenJournal(path)
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	writeStatusReport(os.Stdout, journal.All())

	if cfg.WALDir != "" {
		writeWALStats(os.Stdout, wal.GetStatsFromDir(cfg.WALDir, wal.DefaultConfig()))
	}

	return nil
}

// writeStatusReport prints the latest journal record per instance
func writeStatusReport(out io.Writer, records []*storage.EvaluationRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No evaluations recorded yet")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INSTANCE\tVERDICT\tIDLE SINCE\tLAST CHECK\tREV")
	_, _ = fmt.Fprintln(w, "--------\t-------\t----------\t----------\t---")

	idle := 0
	for _, rec := range records {
		verdict := "active"
		idleSince := "-"
		if rec.Idle {
			verdict = "idle"
			idle++
			if !rec.IdleSince.IsZero() {
				idleSince = rec.IdleSince.UTC().Format("2006-01-02 15:04")
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			rec.ResourceID,
			verdict,
			idleSince,
			rec.CheckedAt.UTC().Format("2006-01-02 15:04"),
			rec.Revision,
		)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%d instances, %d idle\n", len(records), idle)
}

// writeWALStats prints audit WAL statistics when segments exist
func writeWALStats(out io.Writer, stats wal.Stats) {
	if stats.TotalFiles == 0 {
		return
	}

	fmt.Fprintf(out, "WAL: %d segments, %d bytes, sequences %d-%d\n",
		stats.TotalFiles,
		stats.TotalSizeBytes,
		stats.FirstSequence,
		stats.LastSequence,
	)
}
