package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukasito25/portfolio/internal/analytics"
)

const (
	defaultReportDays = 30
	defaultLeadLimit  = 20
)

func analyticsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Traffic reports and retention",
	}
	cmd.AddCommand(analyticsSummaryCmd(g))
	cmd.AddCommand(analyticsLeadsCmd(g))
	cmd.AddCommand(analyticsPurgeCmd(g))
	return cmd
}

func analyticsSummaryCmd(g *globals) *cobra.Command {
	var (
		days    int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the traffic summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open("portfolio-cli")
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.tracker.Summary(cmd.Context(), a.tracker.Since(days))
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			printSummary(cmd.OutOrStdout(), summary, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", defaultReportDays, "Report window in days")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func analyticsLeadsCmd(g *globals) *cobra.Command {
	var (
		days    int
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List the highest scoring visitors",
		Long: `List visitors ranked by lead score.

Scores combine page views, distinct project pages, deep blog reads, scroll
depth, return visits and interactions such as opening the contact form.
Grades: hot (70+), warm (35+), cold.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open("portfolio-cli")
			if err != nil {
				return err
			}
			defer a.Close()

			leads, err := a.tracker.Leads(cmd.Context(), a.tracker.Since(days), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), leads)
			}
			printLeads(cmd.OutOrStdout(), leads, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", defaultReportDays, "Report window in days")
	cmd.Flags().IntVar(&limit, "limit", defaultLeadLimit, "Maximum number of leads")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func analyticsPurgeCmd(g *globals) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete analytics older than the retention window",
		Long: `Delete page views and interactions older than the retention window.

The window defaults to analytics.retention_days; zero keeps everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open("portfolio-cli")
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("days") {
				days = a.cfg.Analytics.RetentionDays
			}
			if days <= 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Retention is disabled; nothing purged")
				return nil
			}

			n, err := a.tracker.Purge(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d rows older than %d days\n", n, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (defaults to analytics.retention_days)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, s *analytics.Summary, days int) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Traffic for the last %d days", days)))
	fmt.Fprintf(w, "  Views             %d\n", s.Views)
	fmt.Fprintf(w, "  Unique visitors   %d\n", s.UniqueVisitors)
	fmt.Fprintf(w, "  Sessions          %d\n", s.UniqueSessions)
	fmt.Fprintf(w, "  Avg scroll depth  %.0f%%\n", s.AvgScrollDepth)
	fmt.Fprintf(w, "  Avg time on page  %s\n", s.AvgTimeOnPage.Round(time.Second))
	fmt.Fprintln(w)

	fmt.Fprintln(w, countTable("Top pages", "Path", s.TopPages))
	fmt.Fprintln(w, countTable("Top referrers", "Referrer", s.TopReferrers))
	fmt.Fprintln(w, countTable("Interactions", "Kind", s.Interactions))

	perDay := newTable("Views per day", "Day", "Views")
	for _, d := range s.ViewsPerDay {
		perDay.add(d.Day, strconv.Itoa(d.Views))
	}
	fmt.Fprint(w, perDay)
}

func countTable(title, key string, counts []analytics.Count) *table {
	t := newTable(title, key, "Count", "Visitors")
	for _, c := range counts {
		t.add(c.Key, strconv.Itoa(c.Count), strconv.Itoa(c.Visitors))
	}
	return t
}

func printLeads(w io.Writer, leads []analytics.Lead, days int) {
	t := newTable(fmt.Sprintf("Leads for the last %d days", days), "Visitor", "Score", "Grade", "Views", "Last seen", "Reasons")
	for _, l := range leads {
		id := l.VisitorID
		if len(id) > 8 {
			id = id[:8]
		}
		t.add(id, strconv.Itoa(l.Score), string(l.Grade), strconv.Itoa(l.PageViews),
			l.LastSeen.Local().Format("2006-01-02 15:04"), strings.Join(l.Reasons, "; "))
	}
	fmt.Fprint(w, t)
}
