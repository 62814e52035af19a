// Package query filtre, agrège et classe un dataset de clients scorés.
// Toutes les fonctions sont pures : le dataset n'est jamais modifié.
package query

import (
	"fmt"
	"math"
	"sort"

	"churn-dashboard/pkg/models"

	"github.com/shopspring/decimal"
)

// DefaultTopLimit est la taille par défaut du classement ROI.
const DefaultTopLimit = 25

// ValidateSpec vérifie min <= max sur les deux intervalles.
func ValidateSpec(spec models.FilterSpec) error {
	if spec.TenureRange.Min > spec.TenureRange.Max {
		return &InvalidFilterError{
			Field: "tenure",
			Min:   fmt.Sprint(spec.TenureRange.Min),
			Max:   fmt.Sprint(spec.TenureRange.Max),
		}
	}
	if spec.ChargesRange.Min.GreaterThan(spec.ChargesRange.Max) {
		return &InvalidFilterError{
			Field: "monthly_charges",
			Min:   spec.ChargesRange.Min.String(),
			Max:   spec.ChargesRange.Max.String(),
		}
	}
	return nil
}

// ValidateRecord contrôle les invariants d'une ligne ; i sert au message.
func ValidateRecord(i int, r models.CustomerRecord) error {
	p := r.ChurnProbability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return &DataIntegrityError{Index: i, Field: "churn_prob", Reason: fmt.Sprintf("%v outside [0,1]", p)}
	}
	if !r.RiskLevel.Valid() {
		return &DataIntegrityError{Index: i, Field: "risk_level", Reason: fmt.Sprintf("unrecognized value %d", int(r.RiskLevel))}
	}
	if r.Tenure < 0 {
		return &DataIntegrityError{Index: i, Field: "tenure", Reason: fmt.Sprintf("negative value %d", r.Tenure)}
	}
	if r.MonthlyCharges.IsNegative() {
		return &DataIntegrityError{Index: i, Field: "monthly_charges", Reason: "negative value " + r.MonthlyCharges.String()}
	}
	if r.CustomerValue.IsNegative() {
		return &DataIntegrityError{Index: i, Field: "customer_value", Reason: "negative value " + r.CustomerValue.String()}
	}
	return nil
}

// Filter retourne la sous-séquence (ordre conservé) des lignes qui satisfont spec.
// Le spec est validé avant de toucher au dataset.
func Filter(dataset []models.CustomerRecord, spec models.FilterSpec) ([]models.CustomerRecord, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	out := make([]models.CustomerRecord, 0, len(dataset))
	for i, r := range dataset {
		if err := ValidateRecord(i, r); err != nil {
			return nil, err
		}
		if !spec.TenureRange.Contains(r.Tenure) ||
			!spec.ChargesRange.Contains(r.MonthlyCharges) ||
			!spec.AllowedRiskLevels.Allows(r.RiskLevel) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Summarize calcule les KPI. Sur zéro ligne, la moyenne vaut 0.
// RevenueAtRiskHigh ne porte que sur High ; TotalExpectedROI porte sur toutes les lignes.
func Summarize(rows []models.CustomerRecord) (models.KpiSummary, error) {
	s := models.KpiSummary{
		RevenueAtRiskHigh: decimal.Zero,
		TotalExpectedROI:  decimal.Zero,
	}
	var probSum float64
	for i, r := range rows {
		if err := ValidateRecord(i, r); err != nil {
			return models.KpiSummary{}, err
		}
		s.TotalCount++
		probSum += r.ChurnProbability
		s.TotalExpectedROI = s.TotalExpectedROI.Add(r.ExpectedROI)
		if r.RiskLevel == models.RiskHigh {
			s.HighRiskCount++
			s.RevenueAtRiskHigh = s.RevenueAtRiskHigh.Add(r.CustomerValue)
		}
	}
	if s.TotalCount > 0 {
		s.MeanChurnProbability = probSum / float64(s.TotalCount)
	}
	return s, nil
}

// TopByROI garde les lignes du niveau requis, triées par ROI décroissant
// (égalités : ordre d'origine), tronquées à limit. limit <= 0 → DefaultTopLimit.
func TopByROI(rows []models.CustomerRecord, limit int, required models.RiskLevel) ([]models.CustomerRecord, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	if required == models.RiskUnknown {
		required = models.RiskHigh
	}
	ranked := make([]models.CustomerRecord, 0)
	for i, r := range rows {
		if err := ValidateRecord(i, r); err != nil {
			return nil, err
		}
		if r.RiskLevel == required {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ExpectedROI.GreaterThan(ranked[j].ExpectedROI)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// CountByRisk compte les lignes par niveau, dans l'ordre Low, Medium, High.
func CountByRisk(rows []models.CustomerRecord) ([]models.RiskCount, error) {
	counts := make(map[models.RiskLevel]int, len(models.AllRiskLevels))
	for i, r := range rows {
		if err := ValidateRecord(i, r); err != nil {
			return nil, err
		}
		counts[r.RiskLevel]++
	}
	out := make([]models.RiskCount, 0, len(models.AllRiskLevels))
	for _, l := range models.AllRiskLevels {
		out = append(out, models.RiskCount{Level: l, Count: counts[l]})
	}
	return out, nil
}

// Result regroupe la vue filtrée et ses dérivés pour la couche de présentation.
type Result struct {
	Rows    []models.CustomerRecord `json:"rows"`
	Summary models.KpiSummary       `json:"summary"`
	Top     []models.CustomerRecord `json:"top"`
	ByRisk  []models.RiskCount      `json:"by_risk"`
}

// Run enchaîne Filter → Summarize / TopByROI / CountByRisk.
func Run(dataset []models.CustomerRecord, spec models.FilterSpec, limit int) (Result, error) {
	rows, err := Filter(dataset, spec)
	if err != nil {
		return Result{}, err
	}
	sum, err := Summarize(rows)
	if err != nil {
		return Result{}, fmt.Errorf("summarize: %w", err)
	}
	top, err := TopByROI(rows, limit, models.RiskHigh)
	if err != nil {
		return Result{}, fmt.Errorf("top: %w", err)
	}
	byRisk, err := CountByRisk(rows)
	if err != nil {
		return Result{}, fmt.Errorf("count by risk: %w", err)
	}
	return Result{Rows: rows, Summary: sum, Top: top, ByRisk: byRisk}, nil
}

// AllowAll retourne un spec qui laisse passer toutes les lignes valides.
func AllowAll() models.FilterSpec {
	return models.FilterSpec{
		TenureRange:  models.IntRange{Min: 0, Max: math.MaxInt},
		ChargesRange: models.DecimalRange{Min: decimal.NewFromInt(math.MinInt64), Max: decimal.NewFromInt(math.MaxInt64)},
	}
}
