package scoring

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndPredict(t *testing.T) {
	path := writeModel(t, `
name: Logistic Regression
auc: 0.82
dataset: Telco Churn Dataset (7043 customers)
features: [tenure, monthly_charges]
coefficients: [-0.05, 0.02]
intercept: 0.5
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// z = 0.5 - 0.05*10 + 0.02*0 = 0 → 0.5
	p, err := m.Predict([]float64{10, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(p-0.5) > 1e-12 {
		t.Fatalf("got %v, want 0.5", p)
	}

	p, _ = m.Predict([]float64{0, 100})
	if p <= 0.5 || p >= 1 {
		t.Fatalf("expected probability in (0.5,1), got %v", p)
	}

	if got := m.Caption(); got != "Logistic Regression | 82% AUC | Telco Churn Dataset (7043 customers)" {
		t.Fatalf("caption: got %q", got)
	}
}

func TestPredictRejectsBadInput(t *testing.T) {
	m := &LogisticModel{Coefficients: []float64{1, 2}}
	if _, err := m.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for wrong feature count, got nil")
	}
	if _, err := m.Predict([]float64{1, math.NaN()}); err == nil {
		t.Fatal("expected error for NaN feature, got nil")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"no coefficients":  "name: x\n",
		"feature mismatch": "features: [a, b]\ncoefficients: [1]\n",
		"auc out of range": "auc: 1.2\ncoefficients: [1]\n",
		"bad yaml":         "coefficients: [1",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeModel(t, content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestCaptionNilModel(t *testing.T) {
	var m *LogisticModel
	if m.Caption() != "no model loaded" {
		t.Fatalf("got %q", m.Caption())
	}
}
