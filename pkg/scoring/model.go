// Package scoring charge l'artefact de classification produit hors ligne.
// Le dashboard n'en consomme que les métadonnées ; Predict reste disponible
// pour les collaborateurs qui alimentent le dataset.
package scoring

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Predictor est la capacité exposée par un artefact scoré.
type Predictor interface {
	Predict(features []float64) (float64, error)
}

// LogisticModel est une régression logistique sérialisée en YAML.
type LogisticModel struct {
	Name         string    `yaml:"name"`
	AUC          float64   `yaml:"auc"`
	Dataset      string    `yaml:"dataset"`
	TrainedRows  int       `yaml:"trained_rows"`
	Features     []string  `yaml:"features"`
	Coefficients []float64 `yaml:"coefficients"`
	Intercept    float64   `yaml:"intercept"`
}

// Load lit et valide un artefact.
func Load(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model %s: %w", path, err)
	}
	var m LogisticModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing model %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

func (m *LogisticModel) validate() error {
	if len(m.Coefficients) == 0 {
		return fmt.Errorf("no coefficients")
	}
	if len(m.Features) != 0 && len(m.Features) != len(m.Coefficients) {
		return fmt.Errorf("%d features for %d coefficients", len(m.Features), len(m.Coefficients))
	}
	if m.AUC < 0 || m.AUC > 1 {
		return fmt.Errorf("auc %v outside [0,1]", m.AUC)
	}
	return nil
}

// Predict retourne sigmoid(intercept + Σ coef·x).
func (m *LogisticModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, fmt.Errorf("predict: got %d features, want %d", len(features), len(m.Coefficients))
	}
	z := m.Intercept
	for i, x := range features {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("predict: feature %d is not finite", i)
		}
		z += m.Coefficients[i] * x
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// Caption résume l'artefact pour le pied de page.
func (m *LogisticModel) Caption() string {
	if m == nil {
		return "no model loaded"
	}
	s := m.Name
	if s == "" {
		s = "Logistic Regression"
	}
	if m.AUC > 0 {
		s += fmt.Sprintf(" | %.0f%% AUC", m.AUC*100)
	}
	if m.Dataset != "" {
		s += " | " + m.Dataset
	}
	return s
}
