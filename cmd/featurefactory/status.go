package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"featurefactory/internal/config"
	"featurefactory/internal/registry"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the feature registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromViper()
		store, err := registry.Open(cfg.Registry.Backend, cfg.RegistryPath())
		if err != nil {
			return err
		}
		defer store.Close()

		reg, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}

		filter, _ := cmd.Flags().GetString("filter")
		items := filterRecords(reg.Items, filter)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		renderStatus(cmd.OutOrStdout(), items)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print records as JSON")
	statusCmd.Flags().String("filter", "", "Only show records with this status (discovered, issue_open, promoted)")
	rootCmd.AddCommand(statusCmd)
}

func filterRecords(items []registry.FeatureRecord, status string) []registry.FeatureRecord {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return items
	}
	var out []registry.FeatureRecord
	for _, rec := range items {
		if string(rec.Status) == status {
			out = append(out, rec)
		}
	}
	return out
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle = map[registry.Status]lipgloss.Style{
		registry.StatusDiscovered: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		registry.StatusIssueOpen:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		registry.StatusPromoted:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
	columns = []struct {
		title string
		width int
	}{{"FEATURE", 14}, {"PRI", 4}, {"STATUS", 11}, {"APPROVAL", 10}, {"ISSUE", 7}, {"DEV BRANCH", 36}, {"TITLE", 40}}
)

func renderStatus(w io.Writer, items []registry.FeatureRecord) {
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No features recorded."))
		return
	}

	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = headerStyle.Width(c.width).Render(c.title)
	}
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cells...))

	for _, rec := range items {
		issue := "-"
		if rec.ProposalIssueNumber != nil {
			issue = fmt.Sprintf("#%d", *rec.ProposalIssueNumber)
		}
		devBranch := rec.DevBranch
		if devBranch == "" {
			devBranch = "-"
		}
		style, ok := statusStyle[rec.Status]
		if !ok {
			style = dimStyle
		}
		row := []string{
			lipgloss.NewStyle().Width(columns[0].width).Render(truncate(rec.FeatureID, columns[0].width-1)),
			lipgloss.NewStyle().Width(columns[1].width).Render(rec.Priority),
			style.Width(columns[2].width).Render(string(rec.Status)),
			lipgloss.NewStyle().Width(columns[3].width).Render(string(rec.ApprovalStatus)),
			lipgloss.NewStyle().Width(columns[4].width).Render(issue),
			lipgloss.NewStyle().Width(columns[5].width).Render(truncate(devBranch, columns[5].width-1)),
			lipgloss.NewStyle().Width(columns[6].width).Render(truncate(rec.Title, columns[6].width-1)),
		}
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d feature(s)", len(items))))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
