package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"churn-dashboard/pkg/config"
	"churn-dashboard/pkg/dashboard"
	"churn-dashboard/pkg/database"
	"churn-dashboard/pkg/dataset"
	"churn-dashboard/pkg/logging"
	"churn-dashboard/pkg/metrics"
	"churn-dashboard/pkg/query"
	"churn-dashboard/pkg/report"
	"churn-dashboard/pkg/scoring"
	"churn-dashboard/pkg/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// Flags globaux
	configPath string
	verbose    bool
	dataPath   string
	dsn        string
	modelPath  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "churn-dashboard",
	Short: "Customer churn dashboard over a precomputed scoring table",
	Long: `Loads a scored customer table once (CSV or SQL) and serves filtered
views, KPI summaries and a ROI-ranked list of high-risk customers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		// les flags l'emportent sur le fichier et l'environnement
		if dataPath != "" {
			cfg.Source.Kind, cfg.Source.Path = "csv", dataPath
		}
		if dsn != "" {
			cfg.Source.Kind, cfg.Source.DSN = "sql", dsn
		}
		if modelPath != "" {
			cfg.Model = modelPath
		}
		if verbose {
			cfg.Verbose = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTML dashboard and JSON API",
	RunE:  runServe,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print KPIs, the top high-risk customers and the action plan",
	RunE:  runReport,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal dashboard",
	RunE:  runTUI,
}

var importCmd = &cobra.Command{
	Use:   "import [csv-file]",
	Short: "Copy a scored CSV file into the configured SQL table",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "churn-dashboard.yaml", "Path to YAML config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Scored CSV file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "SQL DSN: mariadb://, mysql:// or sqlite:// (overrides config)")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Model artifact YAML (overrides config)")

	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	reportCmd.Flags().Int("limit", 0, "Top-N size (default from config)")
	reportCmd.Flags().Bool("all-risk", false, "Ignore the default risk filter")

	rootCmd.AddCommand(serveCmd, reportCmd, tuiCmd, importCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openSource construit la source configurée. close libère la connexion SQL.
func openSource(progress bool) (dataset.Source, func(), error) {
	if cfg.Source.Kind == "csv" {
		return &dataset.CSVSource{Path: cfg.Source.Path, Progress: progress, Logger: logger}, func() {}, nil
	}
	db, driver, _, err := database.Open(cfg.Source.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	logger.Info("connected", zap.Stringer("source", cfg.Source), zap.String("driver", driver))
	src := &database.SQLSource{DB: db, Table: cfg.Source.Table, Progress: progress, Logger: logger}
	return src, func() { db.Close() }, nil
}

func loadModel() (*scoring.LogisticModel, error) {
	if cfg.Model == "" {
		return nil, nil
	}
	m, err := scoring.Load(cfg.Model)
	if err != nil {
		return nil, err
	}
	logger.Info("model loaded", zap.String("caption", m.Caption()))
	return m, nil
}

func modelAUC(m *scoring.LogisticModel) float64 {
	if m == nil {
		return 0
	}
	return m.AUC
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	src, closeSrc, err := openSource(false)
	if err != nil {
		return err
	}
	defer closeSrc()
	model, err := loadModel()
	if err != nil {
		return err
	}
	spec, err := cfg.DefaultFilter()
	if err != nil {
		return err
	}

	cache := dataset.NewCache(src, logger)
	m := metrics.New()
	srv := dashboard.New(dashboard.Options{
		Cache:    cache,
		Model:    model,
		Defaults: spec,
		TopLimit: cfg.TopLimit,
		Logger:   logger,
		Metrics:  m,
	})

	g, gctx := errgroup.WithContext(ctx)
	// chargement anticipé : la première page ne paie pas le coût du CSV
	g.Go(func() error {
		snap, err := cache.Get(gctx)
		if err != nil {
			return err
		}
		m.SetDatasetRows(snap.Len())
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Addr)
	})
	return g.Wait()
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	src, closeSrc, err := openSource(false)
	if err != nil {
		return err
	}
	defer closeSrc()
	model, err := loadModel()
	if err != nil {
		return err
	}
	snap, err := dataset.NewCache(src, logger).Get(ctx)
	if err != nil {
		return err
	}

	spec, err := cfg.DefaultFilter()
	if err != nil {
		return err
	}
	if all, _ := cmd.Flags().GetBool("all-risk"); all {
		spec.AllowedRiskLevels = nil
	}
	limit := cfg.TopLimit
	if l, _ := cmd.Flags().GetInt("limit"); l > 0 {
		limit = l
	}
	if limit <= 0 {
		limit = query.DefaultTopLimit
	}

	res, err := query.Run(snap.Records, spec, limit)
	if err != nil {
		return err
	}
	total, err := query.Summarize(snap.Records)
	if err != nil {
		return err
	}
	page := report.Page{
		Headline: report.Headline(total),
		Result:   res,
		Plan:     report.NewPlan(res, modelAUC(model)),
		Caption:  fmt.Sprintf("%s | %d customers | snapshot %s", model.Caption(), snap.Len(), snap.ID),
		Limit:    limit,
	}
	return page.Write(cmd.OutOrStdout())
}

func runTUI(cmd *cobra.Command, args []string) error {
	src, closeSrc, err := openSource(false)
	if err != nil {
		return err
	}
	defer closeSrc()
	snap, err := dataset.NewCache(src, logger).Get(cmd.Context())
	if err != nil {
		return err
	}
	total, err := query.Summarize(snap.Records)
	if err != nil {
		return err
	}
	spec, err := cfg.DefaultFilter()
	if err != nil {
		return err
	}
	return tui.Run(tui.New(snap.Records, report.Headline(total), spec, cfg.TopLimit))
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cfg.Source.Kind != "sql" {
		return fmt.Errorf("import needs a sql source (--dsn or source.dsn)")
	}
	records, err := (&dataset.CSVSource{Path: args[0], Progress: true, Logger: logger}).Load(ctx)
	if err != nil {
		return err
	}
	db, driver, _, err := database.Open(cfg.Source.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := database.ImportCustomers(ctx, db, driver, cfg.Source.Table, records, true); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	logger.Info("import done", zap.String("table", cfg.Source.Table), zap.Int("rows", len(records)))
	return nil
}
