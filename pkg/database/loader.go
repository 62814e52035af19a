package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"churn-dashboard/pkg/logging"
	"churn-dashboard/pkg/models"
	"churn-dashboard/pkg/query"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Noms de drivers database/sql.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Open DSN mariadb://, mysql:// ou sqlite:// → driver + DSN natif.
// Tout autre DSN est passé tel quel au driver MySQL.
func Open(dsn string) (*sql.DB, string, string, error) {
	driver, nativeDSN, err := toNativeDSN(dsn)
	if err != nil {
		return nil, "", "", err
	}
	db, err := sql.Open(driver, nativeDSN)
	if err != nil {
		return nil, "", "", err
	}
	if driver == DriverSQLite {
		// un seul writer côté SQLite
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, driver, nativeDSN, nil
}

func toNativeDSN(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "sqlite://") {
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("dsn sqlite incomplet (path)")
		}
		return DriverSQLite, path, nil
	}
	out, err := toMySQLDSN(dsn)
	return DriverMySQL, out, err
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("dsn incomplet (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// SQLSource lit le dataset scoré depuis une table SQL.
type SQLSource struct {
	DB       *sql.DB
	Table    string
	Progress bool
	Logger   *zap.Logger
}

func (s *SQLSource) Name() string { return "sql:" + s.Table }

func (s *SQLSource) Load(ctx context.Context) ([]models.CustomerRecord, error) {
	return LoadCustomers(ctx, s.DB, s.Table, s.Progress, s.Logger)
}

// LoadCustomers lit les six colonnes scorées, dans l'ordre des clés primaires.
// Une ligne invalide interrompt le chargement (pas de ligne ignorée).
func LoadCustomers(ctx context.Context, db *sql.DB, tableName string, progress bool, logger *zap.Logger) ([]models.CustomerRecord, error) {
	logger = logging.OrNop(logger)
	if !tableNameRe.MatchString(tableName) {
		return nil, fmt.Errorf("table invalide: %q", tableName)
	}

	var total int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName)).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", tableName, err)
	}
	logger.Debug("customers to load", zap.String("table", tableName), zap.Int("rows", total))

	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.Default(int64(total), "loading "+tableName)
		defer bar.Close()
	}

	q := fmt.Sprintf(`
		SELECT tenure, monthly_charges, customer_value, churn_prob, expected_roi, risk_level
		FROM %s
		ORDER BY id
	`, tableName)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.CustomerRecord, 0, total)
	for rows.Next() {
		var (
			rec                 models.CustomerRecord
			charges, value, roi string
			risk                string
		)
		if err := rows.Scan(&rec.Tenure, &charges, &value, &rec.ChurnProbability, &roi, &risk); err != nil {
			return nil, err
		}
		if rec.MonthlyCharges, err = decimal.NewFromString(charges); err != nil {
			return nil, fmt.Errorf("row %d: monthly_charges: %w", len(out), err)
		}
		if rec.CustomerValue, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("row %d: customer_value: %w", len(out), err)
		}
		if rec.ExpectedROI, err = decimal.NewFromString(roi); err != nil {
			return nil, fmt.Errorf("row %d: expected_roi: %w", len(out), err)
		}
		lvl, err := models.ParseRiskLevel(risk)
		if err != nil {
			return nil, &query.DataIntegrityError{Index: len(out), Field: "risk_level", Reason: err.Error()}
		}
		rec.RiskLevel = lvl
		if err := query.ValidateRecord(len(out), rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.Debug("customers loaded", zap.String("table", tableName), zap.Int("rows", len(out)))
	return out, nil
}

// ImportCustomers crée la table si besoin et insère records dans une transaction.
// La table est vidée avant l'insertion : elle reflète exactement le fichier importé.
func ImportCustomers(ctx context.Context, db *sql.DB, driver, tableName string, records []models.CustomerRecord, progress bool) error {
	if !tableNameRe.MatchString(tableName) {
		return fmt.Errorf("table invalide: %q", tableName)
	}
	for i, r := range records {
		if err := query.ValidateRecord(i, r); err != nil {
			return err
		}
	}

	idCol := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverMySQL {
		idCol = "id BIGINT PRIMARY KEY AUTO_INCREMENT"
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s,
			tenure INTEGER NOT NULL,
			monthly_charges DECIMAL(14,4) NOT NULL,
			customer_value DECIMAL(14,4) NOT NULL,
			churn_prob DOUBLE NOT NULL,
			expected_roi DECIMAL(14,4) NOT NULL,
			risk_level VARCHAR(8) NOT NULL
		)`, tableName, idCol)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", tableName, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, tableName)); err != nil {
		return fmt.Errorf("truncate %s: %w", tableName, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (tenure, monthly_charges, customer_value, churn_prob, expected_roi, risk_level)
		VALUES (?, ?, ?, ?, ?, ?)`, tableName))
	if err != nil {
		return err
	}
	defer stmt.Close()

	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.Default(int64(len(records)), "importing "+tableName)
		defer bar.Close()
	}
	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Tenure, r.MonthlyCharges.String(), r.CustomerValue.String(),
			r.ChurnProbability, r.ExpectedROI.String(), r.RiskLevel.String()); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return tx.Commit()
}
