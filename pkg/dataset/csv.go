package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"churn-dashboard/pkg/logging"
	"churn-dashboard/pkg/models"
	"churn-dashboard/pkg/query"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Columns sont les colonnes obligatoires du fichier scoré.
var Columns = []string{"tenure", "monthly_charges", "customer_value", "churn_prob", "expected_roi", "risk_level"}

// CSVSource lit un fichier CSV scoré.
type CSVSource struct {
	Path     string
	Progress bool
	Logger   *zap.Logger
}

func (s *CSVSource) Name() string { return "csv:" + s.Path }

// Load ouvre le fichier et délègue à ParseCSV.
func (s *CSVSource) Load(ctx context.Context) ([]models.CustomerRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if s.Progress {
		if st, err := f.Stat(); err == nil {
			bar := progressbar.DefaultBytes(st.Size(), "loading "+s.Path)
			r = io.TeeReader(f, bar)
			defer bar.Close()
		}
	}
	return ParseCSV(ctx, r, s.Logger)
}

// ParseCSV lit l'en-tête, repère les six colonnes (les autres sont ignorées)
// puis valide chaque ligne. La première ligne invalide interrompt le chargement.
func ParseCSV(ctx context.Context, r io.Reader, logger *zap.Logger) ([]models.CustomerRecord, error) {
	logger = logging.OrNop(logger)
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	pos := make([]int, len(Columns))
	for i, c := range Columns {
		p, ok := idx[c]
		if !ok {
			return nil, fmt.Errorf("missing required column %q", c)
		}
		pos[i] = p
	}

	var out []models.CustomerRecord
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := make([]string, len(pos))
		for i, p := range pos {
			fields[i] = strings.TrimSpace(row[p])
		}
		rec, err := parseRow(len(out), fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := query.ValidateRecord(len(out), rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
		logger.Debug("row parsed", zap.Int("line", line), zap.Stringer("risk", rec.RiskLevel))
	}
	return out, nil
}

// parseRow suit l'ordre de Columns.
func parseRow(i int, f []string) (models.CustomerRecord, error) {
	var rec models.CustomerRecord
	tenure, err := strconv.ParseFloat(f[0], 64)
	if err != nil || tenure != float64(int(tenure)) {
		return rec, fmt.Errorf("tenure: invalid integer %q", f[0])
	}
	rec.Tenure = int(tenure)
	if rec.MonthlyCharges, err = decimal.NewFromString(f[1]); err != nil {
		return rec, fmt.Errorf("monthly_charges: %w", err)
	}
	if rec.CustomerValue, err = decimal.NewFromString(f[2]); err != nil {
		return rec, fmt.Errorf("customer_value: %w", err)
	}
	if rec.ChurnProbability, err = strconv.ParseFloat(f[3], 64); err != nil {
		return rec, fmt.Errorf("churn_prob: %w", err)
	}
	if rec.ExpectedROI, err = decimal.NewFromString(f[4]); err != nil {
		return rec, fmt.Errorf("expected_roi: %w", err)
	}
	lvl, err := models.ParseRiskLevel(f[5])
	if err != nil {
		return rec, &query.DataIntegrityError{Index: i, Field: "risk_level", Reason: err.Error()}
	}
	rec.RiskLevel = lvl
	return rec, nil
}

// normalizeHeader : "Monthly Charges" → "monthly_charges".
func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "-", "_")
}
