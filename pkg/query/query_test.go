package query

import (
	"errors"
	"testing"

	"churn-dashboard/pkg/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rec(tenure int, charges, value string, churn float64, roi string, risk models.RiskLevel) models.CustomerRecord {
	return models.CustomerRecord{
		Tenure:           tenure,
		MonthlyCharges:   dec(charges),
		CustomerValue:    dec(value),
		ChurnProbability: churn,
		ExpectedROI:      dec(roi),
		RiskLevel:        risk,
	}
}

func spec(tmin, tmax int, cmin, cmax string, levels ...models.RiskLevel) models.FilterSpec {
	return models.FilterSpec{
		TenureRange:       models.IntRange{Min: tmin, Max: tmax},
		ChargesRange:      models.DecimalRange{Min: dec(cmin), Max: dec(cmax)},
		AllowedRiskLevels: models.NewRiskSet(levels...),
	}
}

// cmp ne sait pas comparer decimal.Decimal (champs non exportés).
var decimalEq = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func sample() []models.CustomerRecord {
	return []models.CustomerRecord{
		rec(10, "50", "1000", 0.9, "300", models.RiskHigh),
		rec(60, "90", "2000", 0.2, "50", models.RiskLow),
		rec(5, "20", "400", 0.75, "300", models.RiskHigh),
		rec(30, "70", "1500", 0.5, "120", models.RiskMedium),
		rec(72, "118.75", "3000", 0.8, "450", models.RiskHigh),
		rec(0, "18", "100", 0.1, "0", models.RiskLow),
	}
}

func TestFilter_SpecScenario(t *testing.T) {
	d := []models.CustomerRecord{
		rec(10, "50", "1000", 0.9, "300", models.RiskHigh),
		rec(60, "90", "2000", 0.2, "50", models.RiskLow),
	}
	got, err := Filter(d, spec(0, 72, "18", "120", models.RiskHigh))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(d[:1], got, decimalEq); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}

	sum, err := Summarize(got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.HighRiskCount != 1 || sum.TotalCount != 1 {
		t.Fatalf("counts: got %+v", sum)
	}
	if !sum.RevenueAtRiskHigh.Equal(dec("1000")) {
		t.Fatalf("revenue at risk: got %s, want 1000", sum.RevenueAtRiskHigh)
	}
	if !sum.TotalExpectedROI.Equal(dec("300")) {
		t.Fatalf("total roi: got %s, want 300", sum.TotalExpectedROI)
	}
	if sum.MeanChurnProbability != 0.9 {
		t.Fatalf("mean churn: got %v, want 0.9", sum.MeanChurnProbability)
	}
}

func TestFilter_PreciseAndComplete(t *testing.T) {
	d := sample()
	specs := []models.FilterSpec{
		spec(0, 72, "18", "120"),
		spec(0, 30, "18", "120", models.RiskHigh),
		spec(5, 60, "20", "90", models.RiskLow, models.RiskMedium),
		spec(72, 72, "118.75", "118.75", models.RiskHigh),
		spec(0, 72, "0", "10"),
	}
	for _, s := range specs {
		got, err := Filter(d, s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var want []models.CustomerRecord
		for _, r := range d {
			if s.TenureRange.Contains(r.Tenure) && s.ChargesRange.Contains(r.MonthlyCharges) && s.AllowedRiskLevels.Allows(r.RiskLevel) {
				want = append(want, r)
			}
		}
		if diff := cmp.Diff(want, got, decimalEq, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("spec %+v (-want +got):\n%s", s, diff)
		}
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	d := sample()
	got, err := Filter(d, spec(0, 72, "0", "200", models.RiskHigh))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tenures := []int{}
	for _, r := range got {
		tenures = append(tenures, r.Tenure)
	}
	if diff := cmp.Diff([]int{10, 5, 72}, tenures); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_EmptyRiskSetAllowsAll(t *testing.T) {
	got, err := Filter(sample(), spec(0, 72, "0", "200"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(sample()) {
		t.Fatalf("got %d rows, want %d", len(got), len(sample()))
	}
}

func TestFilter_InclusiveBounds(t *testing.T) {
	got, err := Filter(sample(), spec(0, 0, "18", "18"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Tenure != 0 {
		t.Fatalf("expected only the tenure=0 row, got %+v", got)
	}
}

func TestFilter_InvertedRanges(t *testing.T) {
	tests := []struct {
		name  string
		spec  models.FilterSpec
		field string
	}{
		{"tenure", spec(50, 10, "18", "120"), "tenure"},
		{"charges", spec(0, 72, "120", "18"), "monthly_charges"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// le dataset est invalide lui aussi : l'erreur de filtre passe en premier
			bad := []models.CustomerRecord{rec(1, "1", "1", 1.5, "1", models.RiskHigh)}
			for _, d := range [][]models.CustomerRecord{nil, sample(), bad} {
				_, err := Filter(d, tt.spec)
				var fe *InvalidFilterError
				if !errors.As(err, &fe) {
					t.Fatalf("expected InvalidFilterError, got %v", err)
				}
				if fe.Field != tt.field {
					t.Fatalf("field: got %q, want %q", fe.Field, tt.field)
				}
			}
		})
	}
}

func TestQueries_RejectMalformedRows(t *testing.T) {
	tests := []struct {
		name  string
		row   models.CustomerRecord
		field string
	}{
		{"churn above one", rec(10, "50", "1000", 1.5, "300", models.RiskHigh), "churn_prob"},
		{"churn negative", rec(10, "50", "1000", -0.1, "300", models.RiskHigh), "churn_prob"},
		{"unknown risk", rec(10, "50", "1000", 0.5, "300", models.RiskLevel(9)), "risk_level"},
		{"zero risk", rec(10, "50", "1000", 0.5, "300", models.RiskUnknown), "risk_level"},
		{"negative tenure", rec(-1, "50", "1000", 0.5, "300", models.RiskLow), "tenure"},
		{"negative charges", rec(10, "-0.01", "1000", 0.5, "300", models.RiskLow), "monthly_charges"},
		{"negative value", rec(10, "50", "-1000", 0.5, "300", models.RiskLow), "customer_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := append(sample(), tt.row)
			checks := map[string]error{}
			_, checks["filter"] = Filter(d, spec(0, 72, "0", "200"))
			_, checks["summarize"] = Summarize(d)
			_, checks["top"] = TopByROI(d, 10, models.RiskHigh)
			_, checks["by risk"] = CountByRisk(d)
			for op, err := range checks {
				var de *DataIntegrityError
				if !errors.As(err, &de) {
					t.Fatalf("%s: expected DataIntegrityError, got %v", op, err)
				}
				if de.Field != tt.field || de.Index != len(d)-1 {
					t.Fatalf("%s: got %+v", op, de)
				}
			}
		})
	}
}

func TestFilter_DoesNotMutateDataset(t *testing.T) {
	d := sample()
	before := sample()
	if _, err := Filter(d, spec(0, 30, "0", "200", models.RiskHigh)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := TopByROI(d, 2, models.RiskHigh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(before, d, decimalEq); diff != "" {
		t.Fatalf("dataset mutated (-before +after):\n%s", diff)
	}
}

func TestSummarize_Empty(t *testing.T) {
	got, err := Summarize(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.KpiSummary{RevenueAtRiskHigh: decimal.Zero, TotalExpectedROI: decimal.Zero}
	if diff := cmp.Diff(want, got, decimalEq); diff != "" {
		t.Fatalf("empty summary (-want +got):\n%s", diff)
	}
}

func TestSummarize_AllowAllIsIdentity(t *testing.T) {
	d := sample()
	rows, err := Filter(d, AllowAll())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filtered, _ := Summarize(rows)
	direct, _ := Summarize(d)
	if diff := cmp.Diff(direct, filtered, decimalEq); diff != "" {
		t.Fatalf("allow-all summary differs (-direct +filtered):\n%s", diff)
	}
}

func TestSummarize_ScopesRevenueToHighAndROIToAll(t *testing.T) {
	got, err := Summarize(sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.HighRiskCount != 3 || got.TotalCount != 6 {
		t.Fatalf("counts: got %+v", got)
	}
	if !got.RevenueAtRiskHigh.Equal(dec("4400")) {
		t.Fatalf("revenue at risk: got %s, want 4400", got.RevenueAtRiskHigh)
	}
	if !got.TotalExpectedROI.Equal(dec("1220")) {
		t.Fatalf("total roi: got %s, want 1220", got.TotalExpectedROI)
	}
}

func TestTopByROI(t *testing.T) {
	got, err := TopByROI(sample(), 25, models.RiskHigh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 450, puis les deux 300 dans l'ordre d'origine (tenure 10 puis 5)
	tenures := []int{}
	for _, r := range got {
		tenures = append(tenures, r.Tenure)
	}
	if diff := cmp.Diff([]int{72, 10, 5}, tenures); diff != "" {
		t.Fatalf("ranking (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if got[i].ExpectedROI.GreaterThan(got[i-1].ExpectedROI) {
			t.Fatalf("not sorted non-increasing at %d", i)
		}
	}
}

func TestTopByROI_LimitAndDefaults(t *testing.T) {
	got, _ := TopByROI(sample(), 2, models.RiskHigh)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}

	// limit <= 0 et niveau non précisé → 25 / High
	got, _ = TopByROI(sample(), 0, models.RiskUnknown)
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3 (never padded)", len(got))
	}
	for _, r := range got {
		if r.RiskLevel != models.RiskHigh {
			t.Fatalf("non-high row in ranking: %+v", r)
		}
	}

	got, _ = TopByROI(sample(), 25, models.RiskLow)
	if len(got) != 2 || got[0].Tenure != 60 {
		t.Fatalf("low ranking: got %+v", got)
	}
}

func TestTopByROI_DefaultLimit(t *testing.T) {
	var d []models.CustomerRecord
	for i := 0; i < 40; i++ {
		d = append(d, rec(i, "50", "100", 0.8, "10", models.RiskHigh))
	}
	got, _ := TopByROI(d, 0, models.RiskHigh)
	if len(got) != DefaultTopLimit {
		t.Fatalf("got %d rows, want %d", len(got), DefaultTopLimit)
	}
	// égalité partout → ordre d'origine
	for i, r := range got {
		if r.Tenure != i {
			t.Fatalf("tie order broken at %d: tenure %d", i, r.Tenure)
		}
	}
}

func TestCountByRisk(t *testing.T) {
	got, err := CountByRisk(sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []models.RiskCount{
		{Level: models.RiskLow, Count: 2},
		{Level: models.RiskMedium, Count: 1},
		{Level: models.RiskHigh, Count: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("counts (-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	res, err := Run(sample(), spec(0, 72, "18", "120", models.RiskHigh), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 3 || len(res.Top) != 2 || res.Summary.HighRiskCount != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	_, err = Run(sample(), spec(10, 0, "18", "120"), 2)
	var fe *InvalidFilterError
	if !errors.As(err, &fe) {
		t.Fatalf("expected InvalidFilterError, got %v", err)
	}
}
