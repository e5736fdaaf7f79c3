// Package main provides the MuninDB CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/orneryd/munindb/pkg/config"
	"github.com/orneryd/munindb/pkg/dataset"
	"github.com/orneryd/munindb/pkg/munindb"
	"github.com/orneryd/munindb/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "munindb",
		Short: "MuninDB - Embeddable knowledge base with a reactive graph",
		Long: `MuninDB stores facts and Prolog-style inference rules over a
directed attributed multigraph, answers backward-chaining queries, and
propagates attribute changes through watch callbacks with explicit
cycle and fan-out bounds.`,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "munindb.yaml", "Config file path")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MuninDB v%s (%s)\n", version, commit)
		},
	})

	queryCmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run a query against the stored knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, cfgPath, args[0])
		},
	}
	queryCmd.Flags().Int("limit", 0, "Stop after this many answers (0 = all)")
	rootCmd.AddCommand(queryCmd)

	storeCmd := &cobra.Command{
		Use:   "store <statement>...",
		Short: "Store statements into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, cfgPath, args)
		},
	}
	rootCmd.AddCommand(storeCmd)

	importCmd := &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Import triples from CSV",
		Long:  `Import triples from a CSV file (or "-" for stdin) and persist the result.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, cfgPath, args[0])
		},
	}
	importCmd.Flags().Bool("header", false, "Skip the first CSV row")
	importCmd.Flags().Int("start", 0, "Skip this many data rows")
	importCmd.Flags().Int("limit", 0, "Stop after this many stored triples (0 = all)")
	rootCmd.AddCommand(importCmd)

	exportCmd := &cobra.Command{
		Use:   "export [csv-file]",
		Short: "Export triples to CSV",
		Long:  `Export the stored triples to a CSV file, or stdout when no file is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 1 {
				out = args[0]
			}
			return runExport(cmd, cfgPath, out)
		},
	}
	exportCmd.Flags().Bool("header", false, "Write a header row")
	exportCmd.Flags().Bool("with-data", false, "Include attribute JSON columns")
	rootCmd.AddCommand(exportCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, cfgPath)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, cfgPath string) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.ZapLevel())
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openKB loads the persisted knowledge base. A data directory without
// a snapshot yields an empty KB.
func openKB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*munindb.KB, *storage.Store, error) {
	store, err := storage.Open(storage.Options{DataDir: cfg.DataDir, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	kb := munindb.New(&munindb.Config{
		RecursionLimit:   cfg.RecursionLimit,
		PropagationLimit: cfg.PropagationLimit,
		Logger:           logger,
	})
	snap, err := store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNoSnapshot):
		// Fresh database.
	case err != nil:
		store.Close()
		return nil, nil, err
	default:
		if err := kb.Restore(snap); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	return kb, store, nil
}

func runQuery(cmd *cobra.Command, cfgPath, statement string) error {
	cfg, err := loadConfig(cmd, cfgPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	kb, store, err := openKB(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	answers, err := kb.Query(statement)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	count := 0
	for res := range answers {
		fmt.Println(formatResult(res))
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	if count == 0 {
		fmt.Println("no answers")
	}
	return nil
}

func formatResult(res munindb.Result) string {
	if res.Truth {
		return "true"
	}
	keys := make([]string, 0, len(res.Bindings))
	for k := range res.Bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = %s", k, res.Bindings[k])
	}
	return strings.Join(parts, ", ")
}

func runStore(cmd *cobra.Command, cfgPath string, statements []string) error {
	cfg, err := loadConfig(cmd, cfgPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	kb, store, err := openKB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, stmt := range statements {
		id, err := kb.Store(stmt)
		if err != nil {
			return fmt.Errorf("store %q: %w", stmt, err)
		}
		fmt.Printf("%s -> %s\n", stmt, id)
	}
	return store.Save(ctx, kb.Export())
}

func runImport(cmd *cobra.Command, cfgPath, path string) error {
	cfg, err := loadConfig(cmd, cfgPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	kb, store, err := openKB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	header, _ := cmd.Flags().GetBool("header")
	start, _ := cmd.Flags().GetInt("start")
	limit, _ := cmd.Flags().GetInt("limit")
	rep, err := dataset.FromCSV(kb, in, &dataset.Options{
		Delimiter: cfg.Delimiter(),
		Header:    header,
		Start:     start,
		Limit:     limit,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := store.Save(ctx, kb.Export()); err != nil {
		return err
	}
	fmt.Printf("imported %d triples (%d skipped)\n", rep.Stored, rep.Skipped)
	return nil
}

func runExport(cmd *cobra.Command, cfgPath, path string) error {
	cfg, err := loadConfig(cmd, cfgPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	kb, store, err := openKB(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var out io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	header, _ := cmd.Flags().GetBool("header")
	withData, _ := cmd.Flags().GetBool("with-data")
	return dataset.ToCSV(kb, out, &dataset.Options{
		Delimiter: cfg.Delimiter(),
		Header:    header,
		WithData:  withData,
	})
}

func runStats(cmd *cobra.Command, cfgPath string) error {
	cfg, err := loadConfig(cmd, cfgPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	kb, store, err := openKB(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	s := kb.Stats()
	fmt.Printf("entities:   %d\n", s.Entities)
	fmt.Printf("relations:  %d\n", s.Relations)
	fmt.Printf("facts:      %d\n", s.Facts)
	fmt.Printf("rules:      %d\n", s.Rules)
	fmt.Printf("negatives:  %d\n", s.Negatives)
	if m, err := store.Manifest(); err == nil {
		fmt.Printf("saved at:   %s\n", m.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
