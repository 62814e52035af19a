// Package config charge la configuration du dashboard depuis un fichier YAML,
// puis applique les surcharges d'environnement.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"churn-dashboard/pkg/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Variables d'environnement reconnues.
const (
	EnvDSN   = "CHURN_DASHBOARD_DSN"
	EnvData  = "CHURN_DASHBOARD_DATA"
	EnvAddr  = "CHURN_DASHBOARD_ADDR"
	EnvModel = "CHURN_DASHBOARD_MODEL"
)

// SourceConfig décrit d'où vient le dataset scoré.
type SourceConfig struct {
	Kind  string `yaml:"kind"`  // "csv" ou "sql"
	Path  string `yaml:"path"`  // fichier CSV
	DSN   string `yaml:"dsn"`   // mariadb://, mysql://, sqlite://
	Table string `yaml:"table"` // table SQL
}

// FilterDefaults sont les valeurs initiales des widgets de filtre.
type FilterDefaults struct {
	Tenure     models.IntRange `yaml:"tenure"`
	ChargesMin string          `yaml:"charges_min"`
	ChargesMax string          `yaml:"charges_max"`
	Risk       []string        `yaml:"risk"`
}

// Config est le contenu du fichier churn-dashboard.yaml.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Model    string         `yaml:"model"`
	Addr     string         `yaml:"addr"`
	TopLimit int            `yaml:"top_limit"`
	Filters  FilterDefaults `yaml:"filters"`
	Verbose  bool           `yaml:"verbose"`
}

// Default reprend les bornes des sliders du dashboard d'origine.
func Default() *Config {
	return &Config{
		Source:   SourceConfig{Kind: "csv", Path: "telco_scored.csv", Table: "customers"},
		Addr:     ":8501",
		TopLimit: 25,
		Filters: FilterDefaults{
			Tenure:     models.IntRange{Min: 0, Max: 72},
			ChargesMin: "18",
			ChargesMax: "120",
			Risk:       []string{"High"},
		},
	}
}

// Load lit path (fichier absent → défauts), puis l'environnement.
// path vide → défauts + environnement uniquement.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDSN); v != "" {
		c.Source.Kind = "sql"
		c.Source.DSN = v
	}
	if v := os.Getenv(EnvData); v != "" {
		c.Source.Kind = "csv"
		c.Source.Path = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
}

// Validate rejette les sources inconnues et les bornes par défaut inversées.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "csv":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for csv source")
		}
	case "sql":
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for sql source")
		}
	default:
		return fmt.Errorf("unknown source kind %q (want csv or sql)", c.Source.Kind)
	}
	if c.TopLimit < 0 {
		return fmt.Errorf("top_limit must not be negative")
	}
	if _, err := c.DefaultFilter(); err != nil {
		return err
	}
	return nil
}

// DefaultFilter convertit les défauts YAML en FilterSpec.
func (c *Config) DefaultFilter() (models.FilterSpec, error) {
	f := c.Filters
	lo, err := decimal.NewFromString(f.ChargesMin)
	if err != nil {
		return models.FilterSpec{}, fmt.Errorf("filters.charges_min: %w", err)
	}
	hi, err := decimal.NewFromString(f.ChargesMax)
	if err != nil {
		return models.FilterSpec{}, fmt.Errorf("filters.charges_max: %w", err)
	}
	if f.Tenure.Min > f.Tenure.Max {
		return models.FilterSpec{}, fmt.Errorf("filters.tenure: min %d > max %d", f.Tenure.Min, f.Tenure.Max)
	}
	if lo.GreaterThan(hi) {
		return models.FilterSpec{}, fmt.Errorf("filters.charges: min %s > max %s", lo, hi)
	}
	levels := make([]models.RiskLevel, 0, len(f.Risk))
	for _, s := range f.Risk {
		l, err := models.ParseRiskLevel(s)
		if err != nil {
			return models.FilterSpec{}, fmt.Errorf("filters.risk: %w", err)
		}
		levels = append(levels, l)
	}
	return models.FilterSpec{
		TenureRange:       f.Tenure,
		ChargesRange:      models.DecimalRange{Min: lo, Max: hi},
		AllowedRiskLevels: models.NewRiskSet(levels...),
	}, nil
}

// String masque le mot de passe éventuel du DSN pour les logs.
func (s SourceConfig) String() string {
	if s.Kind == "csv" {
		return "csv:" + s.Path
	}
	if u, err := url.Parse(s.DSN); err == nil && u.Scheme != "" && u.User != nil {
		return "sql:" + u.Redacted()
	}
	// format natif user:pwd@tcp(host)/db
	dsn := s.DSN
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		if colon := strings.Index(dsn[:at], ":"); colon >= 0 {
			dsn = dsn[:colon+1] + "xxxxx" + dsn[at:]
		}
	}
	return "sql:" + dsn
}
