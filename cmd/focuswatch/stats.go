package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/focuswatch/internal/stats"
)

var (
	statsJSON     bool
	recentMinutes int
	recentCount   int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Query activity statistics",
}

var statsDailyCmd = &cobra.Command{
	Use:   "daily [DATE]",
	Short: "Show statistics for one day (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatsDaily,
}

var statsPeriodCmd = &cobra.Command{
	Use:   "period START END",
	Short: "Show statistics for an inclusive date range",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatsPeriod,
}

var statsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most used windows in the last few minutes",
	Args:  cobra.NoArgs,
	RunE:  runStatsRecent,
}

var statsDatesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List dates with recorded activity",
	Args:  cobra.NoArgs,
	RunE:  runStatsDates,
}

func init() {
	statsCmd.PersistentFlags().BoolVar(&statsJSON, "json", false, "Print JSON instead of a table")
	statsRecentCmd.Flags().IntVar(&recentMinutes, "minutes", 10, "Lookback window in minutes")
	statsRecentCmd.Flags().IntVar(&recentCount, "count", 3, "Number of windows to show")

	statsCmd.AddCommand(statsDailyCmd, statsPeriodCmd, statsRecentCmd, statsDatesCmd)
	rootCmd.AddCommand(statsCmd)
}

func withAggregator(fn func(*environment, *stats.Aggregator) error) error {
	// Diagnostics go to stderr so stdout stays parseable.
	env, err := loadEnvironment(os.Stderr, true)
	if err != nil {
		return err
	}
	defer env.close()

	agg, err := env.aggregator()
	if err != nil {
		return err
	}
	return fn(env, agg)
}

func runStatsDaily(cmd *cobra.Command, args []string) error {
	return withAggregator(func(env *environment, agg *stats.Aggregator) error {
		date := time.Now().In(env.cfg.NaiveLocation()).Format(time.DateOnly)
		if len(args) == 1 {
			date = args[0]
		}
		ds, err := agg.DailyStats(cmd.Context(), date)
		if err != nil {
			return err
		}
		if statsJSON {
			return printJSON(cmd.OutOrStdout(), ds)
		}
		renderDaily(cmd.OutOrStdout(), ds)
		return nil
	})
}

func runStatsPeriod(cmd *cobra.Command, args []string) error {
	return withAggregator(func(env *environment, agg *stats.Aggregator) error {
		ps, err := agg.PeriodStats(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if statsJSON {
			return printJSON(cmd.OutOrStdout(), ps)
		}
		renderPeriod(cmd.OutOrStdout(), ps)
		return nil
	})
}

func runStatsRecent(cmd *cobra.Command, args []string) error {
	if recentMinutes <= 0 || recentCount <= 0 {
		return fmt.Errorf("--minutes and --count must be positive")
	}
	return withAggregator(func(env *environment, agg *stats.Aggregator) error {
		usage, err := agg.MostUsedWindows(cmd.Context(), time.Duration(recentMinutes)*time.Minute, recentCount)
		if err != nil {
			return err
		}
		if statsJSON {
			return printJSON(cmd.OutOrStdout(), usage)
		}
		renderRecent(cmd.OutOrStdout(), recentMinutes, usage)
		return nil
	})
}

func runStatsDates(cmd *cobra.Command, args []string) error {
	return withAggregator(func(env *environment, agg *stats.Aggregator) error {
		dates, err := agg.AvailableDates(cmd.Context())
		if err != nil {
			return err
		}
		if statsJSON {
			return printJSON(cmd.OutOrStdout(), dates)
		}
		for _, d := range dates {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	warnColor   = color.New(color.FgYellow)
	alertColor  = color.New(color.FgRed)
	activeColor = color.New(color.FgGreen, color.Bold)
)

func renderDaily(w io.Writer, ds *stats.DailyStats) {
	headerColor.Fprintf(w, "Activity for %s\n", ds.Date)
	fmt.Fprintf(w, "Tracked time:  %s\n", formatMillis(ds.TotalTimeMS))
	fmt.Fprintf(w, "Screen time:   %s\n", formatMillis(ds.ScreenTimeMS))
	fmt.Fprintf(w, "Focus time:    %s (%d sessions)\n", formatMillis(ds.TotalFocusMS), len(ds.FocusSessions))
	fmt.Fprintf(w, "Active:        %s - %s\n", ds.FirstActivity.Format(time.TimeOnly), ds.LastActivity.Format(time.TimeOnly))
	if ds.MissingSnapshot {
		warnColor.Fprintln(w, "No window_durations snapshot recorded for this day; totals are empty.")
	}
	if n := ds.Scan.Skipped(); n > 0 {
		warnColor.Fprintf(w, "Skipped %d unreadable log records.\n", n)
	}

	renderWindows(w, ds.TopWindows)
	renderProcesses(w, ds.TopProcesses)
	renderDistractions(w, ds.Distractions)
}

func renderPeriod(w io.Writer, ps *stats.PeriodStats) {
	headerColor.Fprintf(w, "Activity from %s to %s\n", ps.Start, ps.End)
	fmt.Fprintf(w, "Days with data: %d\n", ps.DaysWithData)
	fmt.Fprintf(w, "Tracked time:   %s\n", formatMillis(ps.TotalTimeMS))
	fmt.Fprintf(w, "Focus time:     %s\n", formatMillis(ps.TotalFocusMS))
	if len(ps.MissingSnapshotDays) > 0 {
		warnColor.Fprintf(w, "Days without snapshot: %s\n", strings.Join(ps.MissingSnapshotDays, ", "))
	}

	renderWindows(w, ps.TopWindows)
	renderProcesses(w, ps.TopProcesses)
	renderDistractions(w, ps.Distractions)
}

func renderRecent(w io.Writer, minutes int, usage []stats.WindowUsage) {
	headerColor.Fprintf(w, "Most used windows, last %d minutes\n", minutes)
	if len(usage) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for i, u := range usage {
		line := fmt.Sprintf("%2d. %-50s %-20s %8s", i+1, truncateText(u.WindowTitle, 50), truncateText(u.ProcessName, 20), u.ActiveTime)
		if u.StillActive {
			activeColor.Fprintln(w, line+"  (active)")
			continue
		}
		fmt.Fprintln(w, line)
	}
}

func renderWindows(w io.Writer, windows []stats.WindowTotal) {
	headerColor.Fprintln(w, "\nTop windows")
	if len(windows) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for i, win := range windows {
		fmt.Fprintf(w, "%2d. %-50s %-20s %10s\n", i+1, truncateText(win.WindowTitle, 50), truncateText(win.ProcessName, 20), formatSeconds(win.TotalSeconds))
	}
}

func renderProcesses(w io.Writer, processes []stats.ProcessTotal) {
	headerColor.Fprintln(w, "\nTop processes")
	if len(processes) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for i, p := range processes {
		fmt.Fprintf(w, "%2d. %-30s %10s\n", i+1, truncateText(p.ProcessName, 30), formatSeconds(p.TotalSeconds))
	}
}

func renderDistractions(w io.Writer, distractions []stats.Distraction) {
	headerColor.Fprintf(w, "\nDistractions (%d)\n", len(distractions))
	for _, d := range distractions {
		alertColor.Fprintf(w, "  %s  %s", d.Timestamp.Format(time.DateTime), truncateText(d.WindowTitle, 50))
		fmt.Fprintf(w, "  %s\n", d.Reason)
	}
}

func formatSeconds(s int64) string {
	return (time.Duration(s) * time.Second).String()
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
