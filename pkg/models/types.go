package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

/*
LOAD → une ligne du fichier scoré (un client par ligne).
*/

// RiskLevel est le niveau de risque attribué en amont à partir de churn_prob.
type RiskLevel int

const (
	RiskUnknown RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

// AllRiskLevels liste les niveaux valides dans l'ordre d'affichage.
var AllRiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "Low"
	case RiskMedium:
		return "Medium"
	case RiskHigh:
		return "High"
	}
	return "Unknown"
}

// Valid indique si r est l'un des trois niveaux reconnus.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// ParseRiskLevel accepte "Low", "Medium", "High" (casse indifférente).
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return RiskUnknown, fmt.Errorf("risk_level inconnu: %q", s)
}

// MarshalText permet l'encodage JSON sous forme de libellé.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText rejette tout libellé hors Low/Medium/High.
func (r *RiskLevel) UnmarshalText(b []byte) error {
	lvl, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*r = lvl
	return nil
}

// CustomerRecord représente un client scoré tel qu'il est lu depuis la source.
type CustomerRecord struct {
	Tenure           int             `json:"tenure"`            // mois
	MonthlyCharges   decimal.Decimal `json:"monthly_charges"`   // devise, chaîne JSON
	CustomerValue    decimal.Decimal `json:"customer_value"`    // CLTV estimée
	ChurnProbability float64         `json:"churn_prob"`        // [0,1]
	ExpectedROI      decimal.Decimal `json:"expected_roi"`      // peut être négatif
	RiskLevel        RiskLevel       `json:"risk_level"`
}

/*
QUERY → paramètres de filtre, recréés à chaque interaction.
*/

// IntRange est un intervalle fermé [Min, Max].
type IntRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Contains est inclusif aux deux bornes.
func (r IntRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// DecimalRange est un intervalle fermé [Min, Max] sur des montants.
type DecimalRange struct {
	Min decimal.Decimal `json:"min" yaml:"min"`
	Max decimal.Decimal `json:"max" yaml:"max"`
}

func (r DecimalRange) Contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(r.Min) && v.LessThanOrEqual(r.Max)
}

// RiskSet est un ensemble de niveaux autorisés. Vide = aucune restriction.
type RiskSet map[RiskLevel]struct{}

// NewRiskSet construit un ensemble à partir d'une liste.
func NewRiskSet(levels ...RiskLevel) RiskSet {
	s := make(RiskSet, len(levels))
	for _, l := range levels {
		s[l] = struct{}{}
	}
	return s
}

// Allows applique la règle "ensemble vide = tout passe".
func (s RiskSet) Allows(l RiskLevel) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[l]
	return ok
}

// Has indique si l est explicitement présent.
func (s RiskSet) Has(l RiskLevel) bool {
	_, ok := s[l]
	return ok
}

// Levels retourne les niveaux triés (Low, Medium, High).
func (s RiskSet) Levels() []RiskLevel {
	out := make([]RiskLevel, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FilterSpec regroupe les trois prédicats appliqués au dataset.
type FilterSpec struct {
	TenureRange       IntRange
	ChargesRange      DecimalRange
	AllowedRiskLevels RiskSet
}

/*
COMPUTE → indicateurs recalculés à chaque requête, jamais persistés.
*/

// KpiSummary contient les agrégats du sous-ensemble filtré.
type KpiSummary struct {
	HighRiskCount        int             `json:"high_risk_count"`
	TotalCount           int             `json:"total_count"`
	RevenueAtRiskHigh    decimal.Decimal `json:"revenue_at_risk_high"`
	TotalExpectedROI     decimal.Decimal `json:"total_expected_roi"`
	MeanChurnProbability float64         `json:"mean_churn_probability"`
}

// RiskCount est le nombre de clients pour un niveau donné.
type RiskCount struct {
	Level RiskLevel `json:"level"`
	Count int       `json:"count"`
}
