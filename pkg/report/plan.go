// Package report met en forme les résultats de requête : montants, bandeau,
// plan d'action, et rendu terminal.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"churn-dashboard/pkg/models"
	"churn-dashboard/pkg/query"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Money formate un montant arrondi à l'unité : "$1,234", "-$50".
func Money(d decimal.Decimal) string {
	n := d.Round(0).IntPart()
	if n < 0 {
		return "-$" + humanize.Comma(-n)
	}
	return "$" + humanize.Comma(n)
}

// CompactMoney : "$1.5M", "$305K", "$940".
func CompactMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	f := d.InexactFloat64()
	switch {
	case f >= 1e6:
		return fmt.Sprintf("%s$%.1fM", sign, f/1e6)
	case f >= 1e3:
		return fmt.Sprintf("%s$%.0fK", sign, f/1e3)
	}
	return sign + Money(d)
}

// Percent : 0.2654 → "26.5%".
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// Headline est calculé sur le dataset complet, indépendamment des filtres.
func Headline(all models.KpiSummary) string {
	return fmt.Sprintf("%s high-risk customers | %s revenue at risk",
		humanize.Comma(int64(all.HighRiskCount)), CompactMoney(all.RevenueAtRiskHigh))
}

// Plan contient les valeurs injectées dans le texte du plan d'action.
type Plan struct {
	TopCount      int
	TopROI        decimal.Decimal
	RevenueAtRisk decimal.Decimal
	AUC           float64
	Discount      int
	Months        int
}

// NewPlan dérive le plan du classement courant et du modèle.
func NewPlan(res query.Result, auc float64) Plan {
	roi := decimal.Zero
	for _, r := range res.Top {
		roi = roi.Add(r.ExpectedROI)
	}
	return Plan{
		TopCount:      len(res.Top),
		TopROI:        roi,
		RevenueAtRisk: res.Summary.RevenueAtRiskHigh,
		AUC:           auc,
		Discount:      20,
		Months:        3,
	}
}

var planTmpl = template.Must(template.New("plan").Funcs(template.FuncMap{
	"compact": CompactMoney,
	"pct":     func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}).Parse(`**Priority Actions:**

1. **Contact top {{.TopCount}} customers** (table above)
2. **Offer {{.Discount}}% discount** for {{.Months}} months
3. **Expected ROI: {{compact .TopROI}}** from retention
{{- if gt .AUC 0.0}}
4. **Model Accuracy: {{pct .AUC}} AUC**
{{- end}}

**Business Impact:** Save {{compact .RevenueAtRisk}} revenue!
`))

// Markdown rend le plan d'action.
func (p Plan) Markdown() string {
	var buf bytes.Buffer
	if err := planTmpl.Execute(&buf, p); err != nil {
		// le template est statique : une erreur ici est un bug
		panic(err)
	}
	return strings.TrimSpace(buf.String()) + "\n"
}
