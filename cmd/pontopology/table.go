package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"pontopology/internal/inventory"
	"pontopology/internal/metrics"
	"pontopology/internal/observability"
	"pontopology/internal/tables"
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	titleStyle = lipgloss.NewStyle().Bold(true)
)

// tagColors maps the table tag colors of package classify to terminal colors.
var tagColors = map[string]lipgloss.Color{
	"green":   lipgloss.Color("#52c41a"),
	"red":     lipgloss.Color("#ff4d4f"),
	"orange":  lipgloss.Color("#fa8c16"),
	"default": lipgloss.Color("#8c8c8c"),
}

func newTableCmd(o *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:       "table olts|odps|onus",
		Short:     "Print one inventory table with classified status and signal",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{tables.KindOLTs, tables.KindODPs, tables.KindONUs},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := fetchInputs(cmd, o)
			if err != nil {
				return err
			}
			if format != "table" {
				rows, err := tables.Rows(args[0], c)
				if err != nil {
					return err
				}
				return encode(cmd.OutOrStdout(), format, rows)
			}
			out, err := renderTable(args[0], c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	return cmd
}

func newDashboardCmd(o *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard statistics and alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := fetchInputs(cmd, o)
			if err != nil {
				return err
			}
			if format != "table" {
				return encode(cmd.OutOrStdout(), format, map[string]any{
					"stats":  tables.DashboardStats(c),
					"alerts": tables.Alerts(c),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDashboard(c))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	return cmd
}

// fetchInputs runs one refresh and returns the fetched collections.
func fetchInputs(cmd *cobra.Command, o *rootOptions) (inventory.Collections, error) {
	a, err := newApp(cmd.Context(), o.cfg, observability.GetLogger(), metrics.NewRegistry())
	if err != nil {
		return inventory.Collections{}, err
	}
	defer a.Close()
	res, err := a.refresher.Refresh(cmd.Context())
	if err != nil {
		return inventory.Collections{}, fmt.Errorf("refresh: %w", err)
	}
	return res.Collections, nil
}

// renderTable draws the rows of kind. Status and signal cells take the
// color of their tag.
func renderTable(kind string, c inventory.Collections) (string, error) {
	var (
		headers []string
		rows    [][]string
		// tags[i][j] colors cell j of row i; empty means uncolored
		tags [][]string
	)
	switch strings.ToLower(kind) {
	case tables.KindOLTs:
		headers = []string{"ID", "NAME", "IP ADDRESS", "STATUS", "MODEL", "LOCATION"}
		for _, r := range tables.OltRows(c.OLTs) {
			rows = append(rows, []string{id(r.ID), r.Name, r.IPAddress, r.Status, r.Model, r.Location})
			tags = append(tags, []string{3: r.StatusTag, 5: ""})
		}
	case tables.KindODPs:
		headers = []string{"ID", "NAME", "CODE", "SPLITTER", "PORTS", "UTILIZATION", "STATUS"}
		for _, r := range tables.OdpRows(c.ODPs) {
			util := strconv.FormatFloat(r.Utilization, 'f', 2, 64) + "%"
			rows = append(rows, []string{id(r.ID), r.Name, r.Code, r.SplitterRatio, r.Ports, util, r.Status})
			utilTag := ""
			if r.Utilization > tables.HighUtilization {
				utilTag = "orange"
			}
			tags = append(tags, []string{5: utilTag, 6: r.StatusTag})
		}
	case tables.KindONUs:
		headers = []string{"ID", "SN", "CUSTOMER", "STATUS", "RX (dBm)", "TX (dBm)", "SIGNAL", "DISTANCE (m)", "PLAN"}
		for _, r := range tables.OnuRows(c.ONUs) {
			rows = append(rows, []string{id(r.ID), r.Serial, r.CustomerName, r.Status, r.RxPower, r.TxPower, string(r.SignalTier), r.Distance, r.ServicePlan})
			tags = append(tags, []string{3: r.StatusTag, 4: r.SignalTag, 6: r.SignalTag, 8: ""})
		}
	default:
		_, err := tables.Rows(kind, c)
		return "", err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(tags) && col < len(tags[row]) {
				if color, ok := tagColors[tags[row][col]]; ok {
					return cellStyle.Foreground(color)
				}
			}
			return cellStyle
		})
	return t.Render(), nil
}

func renderDashboard(c inventory.Collections) string {
	s := tables.DashboardStats(c)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Network") + "\n\n")
	fmt.Fprintf(&b, "OLTs   %d total, %d online, %d offline\n", s.OLTs.Total, s.OLTs.Online, s.OLTs.Offline)
	fmt.Fprintf(&b, "ONUs   %d total, %d online, %d offline\n", s.ONUs.Total, s.ONUs.Online, s.ONUs.Offline)
	fmt.Fprintf(&b, "ODPs   %d total, %d active\n", s.ODPs.Total, s.ODPs.Active)
	util := strconv.FormatFloat(s.PortUtilization, 'f', 2, 64) + "%"
	if s.PortUtilization > tables.HighUtilization {
		util = lipgloss.NewStyle().Foreground(tagColors["orange"]).Render(util)
	}
	fmt.Fprintf(&b, "Ports  %s used", util)
	stats := statsBoxStyle.Render(b.String())

	b.Reset()
	b.WriteString(titleStyle.Render("Alerts") + "\n\n")
	alerts := tables.Alerts(c)
	if len(alerts) == 0 {
		b.WriteString("none")
	}
	for i, a := range alerts {
		color := tagColors["orange"]
		if a.Type == tables.AlertError {
			color = tagColors["red"]
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(lipgloss.NewStyle().Foreground(color).Bold(true).Render(a.Title) + "  " + a.Message)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, stats, statsBoxStyle.Render(b.String()))
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}
