// Package tui est une vue terminal interactive du dashboard : les touches
// modifient le FilterSpec et chaque changement relance la requête.
package tui

import (
	"fmt"
	"strings"

	"churn-dashboard/pkg/models"
	"churn-dashboard/pkg/query"
	"churn-dashboard/pkg/report"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tenureCeiling = 72

var (
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle = lipgloss.NewStyle().Faint(true)
	hdrStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// Model implémente tea.Model.
type Model struct {
	records  []models.CustomerRecord
	headline string
	spec     models.FilterSpec
	limit    int

	result query.Result
	err    error
	table  table.Model
}

// New prépare le modèle et exécute une première requête.
func New(records []models.CustomerRecord, headline string, spec models.FilterSpec, limit int) Model {
	cols := make([]table.Column, len(report.TopColumns))
	for i, c := range report.TopColumns {
		cols[i] = table.Column{Title: c, Width: 12}
	}
	allowed := models.NewRiskSet(spec.AllowedRiskLevels.Levels()...)
	m := Model{
		records:  records,
		headline: headline,
		spec:     models.FilterSpec{TenureRange: spec.TenureRange, ChargesRange: spec.ChargesRange, AllowedRiskLevels: allowed},
		limit:    limit,
		table:    table.New(table.WithColumns(cols), table.WithHeight(12), table.WithFocused(true)),
	}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	m.result, m.err = query.Run(m.records, m.spec, m.limit)
	rows := make([]table.Row, 0, len(m.result.Top))
	for _, r := range m.result.Top {
		rows = append(rows, table.Row(report.TopRow(r)))
	}
	m.table.SetRows(rows)
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	tr := &m.spec.TenureRange
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "[":
		tr.Min = clamp(tr.Min-1)
	case "]":
		tr.Min = clamp(tr.Min + 1)
	case "{":
		tr.Max = clamp(tr.Max - 1)
	case "}":
		tr.Max = clamp(tr.Max + 1)
	case "l":
		m.toggle(models.RiskLow)
	case "m":
		m.toggle(models.RiskMedium)
	case "h":
		m.toggle(models.RiskHigh)
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, nil
}

// toggle copie l'ensemble avant modification : Update travaille sur une copie de Model.
func (m *Model) toggle(l models.RiskLevel) {
	next := models.NewRiskSet(m.spec.AllowedRiskLevels.Levels()...)
	if next.Has(l) {
		delete(next, l)
	} else {
		next[l] = struct{}{}
	}
	m.spec.AllowedRiskLevels = next
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > tenureCeiling {
		return tenureCeiling
	}
	return v
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(hdrStyle.Render("Customer Churn Prediction Dashboard") + "\n")
	b.WriteString(m.headline + "\n\n")

	risk := "all"
	if lv := m.spec.AllowedRiskLevels.Levels(); len(lv) > 0 {
		names := make([]string, len(lv))
		for i, l := range lv {
			names[i] = l.String()
		}
		risk = strings.Join(names, ",")
	}
	b.WriteString(fmt.Sprintf("tenure %d–%d | charges %s–%s | risk %s\n\n",
		m.spec.TenureRange.Min, m.spec.TenureRange.Max,
		m.spec.ChargesRange.Min, m.spec.ChargesRange.Max, risk))

	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()) + "\n")
	} else {
		b.WriteString(report.RenderCards(m.result.Summary) + "\n\n")
		b.WriteString(m.table.View() + "\n")
	}
	b.WriteString(helpStyle.Render("[ ] min tenure  { } max tenure  l/m/h toggle risk  ↑/↓ scroll  q quit") + "\n")
	return b.String()
}

// Spec expose le filtre courant.
func (m Model) Spec() models.FilterSpec { return m.spec }

// Result expose le dernier résultat calculé.
func (m Model) Result() (query.Result, error) { return m.result, m.err }

// Run lance le programme en plein écran.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
