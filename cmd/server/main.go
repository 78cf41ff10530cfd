package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/me/quarry/internal/config"
	"github.com/me/quarry/internal/engine"
	"github.com/me/quarry/internal/logging"
	"github.com/me/quarry/internal/provider"
	"github.com/me/quarry/internal/server"
	"github.com/me/quarry/internal/source"
	"github.com/me/quarry/internal/store"
	"github.com/me/quarry/internal/tree"
	"github.com/me/quarry/pkg/model"
)

func main() {
	cfg := config.DefaultServerConfig()
	engCfg := engine.DefaultConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.quarry/quarry.db)")
	flag.StringVar(&cfg.TreeFile, "tree", cfg.TreeFile, "YAML seed tree, used when the database holds no tree yet")
	flag.IntVar(&engCfg.TargetFetchers, "target-fetchers", engCfg.TargetFetchers, "Fetch operations kept in flight across the tree")
	flag.DurationVar(&engCfg.PollInterval, "poll-interval", engCfg.PollInterval, "Pump loop poll interval")
	flag.Float64Var(&engCfg.UnitBudget, "unit-budget", engCfg.UnitBudget, "Work unit cap per pump tick")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".quarry")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "quarry.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	// Leaf factories, one per fetching kind.
	factories := map[model.SourceKind]tree.Factory{
		model.SourceKindHTTP: func(id uuid.UUID, c model.SourceConfig) (source.Source, error) {
			return provider.NewLeaf(id, model.SourceKindHTTP, c, provider.NewHTTPFetcher(c.URL, logger), logger), nil
		},
		model.SourceKindSynthetic: func(id uuid.UUID, c model.SourceConfig) (source.Source, error) {
			return provider.NewLeaf(id, model.SourceKindSynthetic, c, provider.NewSyntheticFetcher(c.BatchUnits, 100*time.Millisecond), logger), nil
		},
	}
	tm := tree.NewManager(factories, logger)

	// Tree shape: the database wins, a --tree seed file fills an empty
	// database, and failing both we start with a bare root group.
	desc, err := loadTree(st, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load tree: %v\n", err)
		os.Exit(1)
	}
	if err := tm.Inflate(*desc); err != nil {
		fmt.Fprintf(os.Stderr, "inflate tree: %v\n", err)
		os.Exit(1)
	}
	if err := st.SaveTree(context.Background(), tm.Deflate()); err != nil {
		logger.Error("persist tree", "error", err)
	}

	root := tm.Root()
	if err := root.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "start tree: %v\n", err)
		os.Exit(1)
	}

	pump := engine.NewLoop(root, st, engCfg, logger)

	srv := server.New(cfg, tm, st, logger)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := pump.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("engine stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop the pump before tearing the tree down, then drain fetchers.
	if err := pump.Stop(); err != nil {
		logger.Error("engine stop error", "error", err)
	}
	if err := root.Stop(); err != nil {
		logger.Error("tree stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// loadTree picks the initial tree shape: persisted tree, then seed
// file, then an empty root group.
func loadTree(st store.Store, cfg config.ServerConfig) (*model.NodeDescriptor, error) {
	desc, err := st.LoadTree(context.Background())
	if err != nil {
		return nil, err
	}
	if desc != nil {
		return desc, nil
	}
	if cfg.TreeFile != "" {
		return config.LoadTreeFile(cfg.TreeFile)
	}
	return &model.NodeDescriptor{
		Kind:   model.SourceKindGroup,
		Config: model.SourceConfig{Name: "root", Enabled: true},
	}, nil
}
