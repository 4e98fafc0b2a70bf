package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/serialmirror/internal/database"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded crawl runs",
		Long: `History lists the runs recorded in the history database, newest first.

Given a run id (or a unique prefix of one) it prints every event of that
run: delays, attempts, retries, cache hits and fallbacks.

Examples:
  serialmirror history
  serialmirror history --limit 5
  serialmirror history 3f2a
  serialmirror history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().Duration("prune", 0, "Delete runs older than this duration")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	prune, err := cmd.Flags().GetDuration("prune")
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.HistoryDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if prune > 0 {
		n, err := db.DeleteRunsBefore(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d runs older than %s\n", n, prune)
		return nil
	}

	if len(args) == 1 {
		run, err := db.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		events, err := db.RunEvents(ctx, run.ID)
		if err != nil {
			return err
		}
		return writeRunEvents(out, run, events)
	}

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded in %s\n", cfg.HistoryPath())
		return nil
	}
	return writeRuns(out, runs)
}

func writeRuns(w io.Writer, runs []database.Run) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Command", "Started", "Duration", "Status", "Pages", "Fetched", "Cached", "Formatted"})
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID), r.Command, humanize.Time(r.StartedAt), r.Duration().Round(time.Second).String(),
			string(r.Status), strconv.Itoa(r.Pages), strconv.Itoa(r.Fetched), strconv.Itoa(r.Cached), strconv.Itoa(r.Formatted),
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeRunEvents(w io.Writer, run *database.Run, events []database.EventRecord) error {
	fmt.Fprintf(w, "Run %s (%s) %s\n", run.ID, run.Command, run.Status)
	fmt.Fprintf(w, "  workdir: %s\n", run.WorkDir)
	if run.StartURL != "" {
		fmt.Fprintf(w, "  start:   %s\n", run.StartURL)
	}
	fmt.Fprintf(w, "  started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.Error != "" {
		fmt.Fprintf(w, "  error:   %s\n", run.Error)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Time", "Event", "Page", "Attempt", "Detail"})
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		attempt := ""
		if e.Attempt > 0 {
			attempt = strconv.Itoa(e.Attempt) + "/" + strconv.Itoa(e.MaxAttempts)
		}
		rows = append(rows, []string{e.Timestamp.Local().Format(time.TimeOnly), string(e.Kind), e.PageID, attempt, eventDetail(e)})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func eventDetail(e database.EventRecord) string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Delay > 0:
		return "waited " + e.Delay.Round(10*time.Millisecond).String()
	case e.Bytes > 0:
		return humanize.Bytes(uint64(e.Bytes))
	default:
		return e.URL
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
