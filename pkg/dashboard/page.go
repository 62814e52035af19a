package dashboard

import (
	"bytes"
	"html/template"
	"net/http"

	"churn-dashboard/pkg/models"
	"churn-dashboard/pkg/query"
	"churn-dashboard/pkg/report"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

type riskBar struct {
	Level   string
	Count   int
	Percent float64
	Checked bool
}

type pageData struct {
	Headline   string
	Spec       models.FilterSpec
	Limit      int
	Cards      []report.Card
	Bars       []riskBar
	Columns    []string
	Top        [][]string
	Plan       template.HTML
	Caption    string
	Error      string
	TotalCount int
}

var pageTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Churn Dashboard</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;display:flex}
aside{width:240px;padding:1rem;background:#f4f5f7;min-height:100vh}
main{flex:1;padding:1rem 2rem}
.cards{display:flex;gap:1rem}
.card{border:1px solid #ddd;border-radius:8px;padding:.75rem 1rem;min-width:160px}
.card .v{font-size:1.6rem;font-weight:600}
.bar{background:#e74c3c;height:14px}
table{border-collapse:collapse;width:100%}
td,th{padding:4px 8px;border-bottom:1px solid #eee;text-align:right}
.err{background:#fdecea;color:#a30000;padding:.75rem;border-radius:6px}
.plan{background:#eafaf1;padding:.75rem 1rem;border-radius:6px}
</style>
</head>
<body>
<aside>
<h3>Filters</h3>
<form method="get" action="/">
<label>Min Tenure <input type="number" name="tenure_min" min="0" max="72" value="{{.Spec.TenureRange.Min}}"></label><br>
<label>Max Tenure <input type="number" name="tenure_max" min="0" max="72" value="{{.Spec.TenureRange.Max}}"></label><br>
<label>Min Charges <input type="text" name="charges_min" value="{{.Spec.ChargesRange.Min}}"></label><br>
<label>Max Charges <input type="text" name="charges_max" value="{{.Spec.ChargesRange.Max}}"></label><br>
<input type="hidden" name="risk" value="">
{{range .Bars}}<label><input type="checkbox" name="risk" value="{{.Level}}"{{if .Checked}} checked{{end}}> {{.Level}}</label><br>{{end}}
<button type="submit">Apply</button>
</form>
</aside>
<main>
<h1>Customer Churn Prediction Dashboard</h1>
<p><strong>{{.Headline}}</strong></p>
{{if .Error}}<div class="err">{{.Error}}</div>{{else}}
<div class="cards">{{range .Cards}}<div class="card"><div>{{.Label}}</div><div class="v">{{.Value}}</div></div>{{end}}</div>
<hr>
<h3>Risk Distribution ({{.TotalCount}} customers)</h3>
<table>{{range .Bars}}<tr><th style="text-align:left;width:80px">{{.Level}}</th><td style="width:60px">{{.Count}}</td><td style="text-align:left"><div class="bar" style="width:{{printf "%.1f" .Percent}}%"></div></td></tr>{{end}}</table>
<hr>
<h3>Top {{.Limit}} High-Risk Customers (Prioritized by ROI)</h3>
<table><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Top}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{else}}<tr><td colspan="6">No high-risk customers match the filters.</td></tr>{{end}}
</table>
<hr>
<h3>Action Plan</h3>
<div class="plan">{{.Plan}}</div>
{{end}}
<hr>
<small>{{.Caption}}</small>
</main>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Spec:    s.opts.Defaults,
		Limit:   s.opts.TopLimit,
		Columns: report.TopColumns,
		Caption: "Built with Go | " + s.opts.Model.Caption(),
	}
	status := http.StatusOK

	snap, res, limit, err := s.run(r, "index")
	if snap != nil {
		if all, err := query.Summarize(snap.Records); err == nil {
			data.Headline = report.Headline(all)
		}
	}
	if spec, _, perr := ParseFilter(r.URL.Query(), s.opts.Defaults, s.opts.TopLimit); perr == nil {
		data.Spec = spec
	}
	if err != nil {
		status, _ = statusFor(err)
		data.Error = err.Error()
		s.logger.Debug("index query failed", zap.Error(err))
	} else {
		data.Limit = limit
		data.Cards = report.Cards(res.Summary)
		data.TotalCount = res.Summary.TotalCount
		for _, row := range res.Top {
			data.Top = append(data.Top, report.TopRow(row))
		}
		var plan bytes.Buffer
		auc := 0.0
		if s.opts.Model != nil {
			auc = s.opts.Model.AUC
		}
		if err := goldmark.Convert([]byte(report.NewPlan(res, auc).Markdown()), &plan); err == nil {
			// sortie goldmark sur un gabarit interne, pas d'entrée utilisateur
			data.Plan = template.HTML(plan.String())
		}
	}
	data.Bars = riskBars(res.ByRisk, data.Spec.AllowedRiskLevels, data.TotalCount)

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func riskBars(counts []models.RiskCount, allowed models.RiskSet, total int) []riskBar {
	byLevel := make(map[models.RiskLevel]int, len(counts))
	for _, c := range counts {
		byLevel[c.Level] = c.Count
	}
	bars := make([]riskBar, 0, len(models.AllRiskLevels))
	for _, l := range models.AllRiskLevels {
		b := riskBar{Level: l.String(), Count: byLevel[l], Checked: allowed.Has(l)}
		if total > 0 {
			b.Percent = float64(b.Count) * 100 / float64(total)
		}
		bars = append(bars, b)
	}
	return bars
}
