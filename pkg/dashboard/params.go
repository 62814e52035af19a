package dashboard

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"churn-dashboard/pkg/models"
	"churn-dashboard/pkg/query"

	"github.com/shopspring/decimal"
)

// ParamError signale un paramètre de requête illisible.
type ParamError struct {
	Param string
	Value string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %s=%q: %v", e.Param, e.Value, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// ParseFilter construit un FilterSpec à partir de la query string.
// Les paramètres absents prennent la valeur de defaults. Le paramètre risk
// est répétable ou séparé par des virgules ; "risk=" (vide) lève toute
// restriction. limit=0 (ou absent) prend defaultLimit, puis
// query.DefaultTopLimit. Les bornes inversées sont laissées telles quelles : c'est
// query.Filter qui les rejette.
func ParseFilter(q url.Values, defaults models.FilterSpec, defaultLimit int) (models.FilterSpec, int, error) {
	spec := models.FilterSpec{
		TenureRange:       defaults.TenureRange,
		ChargesRange:      defaults.ChargesRange,
		AllowedRiskLevels: defaults.AllowedRiskLevels,
	}
	var err error
	if spec.TenureRange.Min, err = intParam(q, "tenure_min", spec.TenureRange.Min); err != nil {
		return spec, 0, err
	}
	if spec.TenureRange.Max, err = intParam(q, "tenure_max", spec.TenureRange.Max); err != nil {
		return spec, 0, err
	}
	if spec.ChargesRange.Min, err = decimalParam(q, "charges_min", spec.ChargesRange.Min); err != nil {
		return spec, 0, err
	}
	if spec.ChargesRange.Max, err = decimalParam(q, "charges_max", spec.ChargesRange.Max); err != nil {
		return spec, 0, err
	}
	if vals, ok := q["risk"]; ok {
		levels := []models.RiskLevel{}
		for _, v := range vals {
			for _, part := range strings.Split(v, ",") {
				if strings.TrimSpace(part) == "" {
					continue
				}
				l, err := models.ParseRiskLevel(part)
				if err != nil {
					return spec, 0, &ParamError{Param: "risk", Value: part, Err: err}
				}
				levels = append(levels, l)
			}
		}
		spec.AllowedRiskLevels = models.NewRiskSet(levels...)
	}
	limit, err := intParam(q, "limit", defaultLimit)
	if err != nil {
		return spec, 0, err
	}
	if limit < 0 {
		return spec, 0, &ParamError{Param: "limit", Value: q.Get("limit"), Err: fmt.Errorf("must not be negative")}
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit <= 0 {
		limit = query.DefaultTopLimit
	}
	return spec, limit, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ParamError{Param: name, Value: v, Err: err}
	}
	return n, nil
}

func decimalParam(q url.Values, name string, def decimal.Decimal) (decimal.Decimal, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, &ParamError{Param: name, Value: v, Err: err}
	}
	return d, nil
}
