package report

import (
	"fmt"
	"io"
	"strings"

	"churn-dashboard/pkg/models"
	"churn-dashboard/pkg/query"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	cardStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2).
			Width(22)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	captionStyle = lipgloss.NewStyle().Faint(true).Italic(true)
)

// Card est un indicateur affiché en tête de page.
type Card struct {
	Label string
	Value string
}

// Cards retourne les quatre indicateurs du dashboard.
func Cards(s models.KpiSummary) []Card {
	return []Card{
		{"High Risk", fmt.Sprint(s.HighRiskCount)},
		{"Revenue Risk", Money(s.RevenueAtRiskHigh)},
		{"Potential Savings", Money(s.TotalExpectedROI)},
		{"Avg Churn Prob", Percent(s.MeanChurnProbability)},
	}
}

// TopColumns sont les colonnes du tableau prioritaire.
var TopColumns = []string{"Churn Risk", "CLTV ($)", "ROI ($)", "Monthly", "Tenure", "Risk"}

// TopRow formate une ligne du tableau prioritaire.
func TopRow(r models.CustomerRecord) []string {
	return []string{
		fmt.Sprintf("%.0f%%", r.ChurnProbability*100),
		Money(r.CustomerValue),
		Money(r.ExpectedROI),
		"$" + r.MonthlyCharges.StringFixed(2),
		fmt.Sprint(r.Tenure),
		r.RiskLevel.String(),
	}
}

// RenderCards aligne les cartes horizontalement.
func RenderCards(s models.KpiSummary) string {
	cards := Cards(s)
	boxes := make([]string, 0, len(cards))
	for _, c := range cards {
		boxes = append(boxes, cardStyle.Render(labelStyle.Render(c.Label)+"\n"+valueStyle.Render(c.Value)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

// RenderTable produit un tableau texte à colonnes alignées.
func RenderTable(rows []models.CustomerRecord) string {
	widths := make([]int, len(TopColumns))
	cells := make([][]string, 0, len(rows))
	for i, c := range TopColumns {
		widths[i] = lipgloss.Width(c)
	}
	for _, r := range rows {
		row := TopRow(r)
		for i, c := range row {
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
		cells = append(cells, row)
	}

	var b strings.Builder
	pad := func(row []string, style lipgloss.Style) {
		parts := make([]string, len(row))
		for i, c := range row {
			parts[i] = style.Render(c + strings.Repeat(" ", widths[i]-lipgloss.Width(c)))
		}
		b.WriteString(strings.Join(parts, "  "))
		b.WriteString("\n")
	}
	pad(TopColumns, headerStyle)
	for _, row := range cells {
		pad(row, lipgloss.NewStyle())
	}
	if len(rows) == 0 {
		b.WriteString(captionStyle.Render("no high-risk customers match the filters") + "\n")
	}
	return b.String()
}

// RenderMarkdown passe par glamour ; en cas d'échec le texte brut est retourné.
func RenderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// Page regroupe tout ce qu'affiche la commande report.
type Page struct {
	Headline string
	Result   query.Result
	Plan     Plan
	Caption  string
	Limit    int
}

// Write écrit la page complète sur w.
func (p Page) Write(w io.Writer) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Customer Churn Prediction Dashboard") + "\n")
	b.WriteString(valueStyle.Render(p.Headline) + "\n\n")
	b.WriteString(RenderCards(p.Result.Summary) + "\n\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("Top %d High-Risk Customers (Prioritized by ROI)", p.Limit)) + "\n")
	b.WriteString(RenderTable(p.Result.Top) + "\n")
	b.WriteString(titleStyle.Render("Action Plan") + "\n")
	b.WriteString(RenderMarkdown(p.Plan.Markdown(), 80))
	b.WriteString(captionStyle.Render(p.Caption) + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}
