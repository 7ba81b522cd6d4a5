package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pable/crickrecon/internal/config"
	"github.com/pable/crickrecon/internal/feed"
	"github.com/pable/crickrecon/internal/loader"
	"github.com/pable/crickrecon/internal/logger"
	"github.com/pable/crickrecon/internal/model"
	"github.com/pable/crickrecon/internal/pipeline"
	"github.com/pable/crickrecon/internal/storage"
)

var (
	dbPath    string
	feedPath  string
	batchSize int
	debug     bool
	logJSON   bool

	cfg *config.Config
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "crickrecon",
	Short: "Cricket ball-by-ball reconciliation tool",
	Long: `Reconcile a ball-by-ball delivery export against the teams, players and matches
tables: load deliveries exactly once, infer player teams, derive match results
and rebuild per-match player statistics.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: func(*cobra.Command, []string) error { _ = log.Sync(); return nil },
}

// Execute runs the root command. Ctrl-C cancels the context; the loader stops between batches.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dbPath, "db", "", "path to SQLite database (env CRICKRECON_DB_PATH, default ~/.crickrecon/cricket.db)")
	pf.StringVar(&feedPath, "feed", "", "ball-by-ball CSV export (env CRICKRECON_FEED_PATH)")
	pf.IntVar(&batchSize, "batch-size", 0, "events per loader transaction (env CRICKRECON_BATCH_SIZE, default 1000)")
	pf.BoolVar(&debug, "debug", false, "debug logging (env CRICKRECON_DEBUG)")
	pf.BoolVar(&logJSON, "log-json", false, "JSON log output (env CRICKRECON_LOG_JSON)")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(affiliateCmd)
	rootCmd.AddCommand(outcomesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(shellCmd)
}

// setup loads configuration, applies explicit flags on top and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		c.DBPath = dbPath
	}
	if flags.Changed("feed") {
		c.FeedPath = feedPath
	}
	if flags.Changed("batch-size") {
		c.BatchSize = batchSize
	}
	if flags.Changed("debug") {
		c.Debug = debug
	}
	if flags.Changed("log-json") {
		c.LogJSON = logJSON
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	l, err := logger.New(cfg.Debug, cfg.LogJSON)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log = l
	log.Debug("config loaded",
		zap.String("db", cfg.DBPath), zap.String("feed", cfg.FeedPath), zap.Int("batch_size", cfg.BatchSize))
	return nil
}

func openDB(ctx context.Context) (*storage.DB, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping storage: %w", err)
	}
	return db, nil
}

func readFeed() ([]model.RawEvent, error) {
	rows, err := feed.ReadFile(cfg.FeedPath)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	log.Info("feed read", zap.String("path", cfg.FeedPath), zap.Int("rows", len(rows)))
	return rows, nil
}

func newPipeline(db *storage.DB) *pipeline.Pipeline {
	return pipeline.New(db, pipeline.WithLogger(log), pipeline.WithBatchSize(cfg.BatchSize))
}

// explainLoadError adds a resume hint when a load batch failed after earlier batches committed.
func explainLoadError(err error) error {
	var be *loader.BatchError
	if errors.As(err, &be) && be.Committed > 0 {
		return fmt.Errorf("%w\n%d events were committed before the failure; re-run to continue from there", err, be.Committed)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w\ncommitted batches are kept; re-run to continue", err)
	}
	return err
}
