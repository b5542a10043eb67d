package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"voxtype/config"
	"voxtype/history"
)

func historyPath(cfg config.Config) string {
	return filepath.Join(cfg.TranscriptDir, "history.db")
}

// runHistory implements "voxtype history [-n N]".
func runHistory(args []string, cfg config.Config, out io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(out)
	n := fs.Int("n", 10, "number of sessions to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := historyPath(cfg)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return 0
	}
	store, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	sessions, err := store.Recent(*n)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return 0
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tUTTERANCES\tTRANSCRIPT")
	for _, s := range sessions {
		dur := "unfinished"
		if s.EndedAt != nil {
			dur = s.Duration().Round(time.Second).String()
		}
		path := s.TranscriptPath
		if !s.Saved {
			path = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.StartedAt.Format("2006-01-02 15:04:05"), dur, s.Utterances, path)
	}
	tw.Flush()
	return 0
}
