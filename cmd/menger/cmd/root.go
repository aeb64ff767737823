package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mengerdb/menger/internal/backend"
	"github.com/mengerdb/menger/internal/config"
	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/logger"
	"github.com/mengerdb/menger/internal/profile"
	"github.com/mengerdb/menger/internal/schema"
	"github.com/mengerdb/menger/internal/space"
)

// Version information (set via ldflags at build time).
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values.
var (
	cfgFile    string
	schemaFile string
	storeURI   string
	logLevel   string
	cacheRatio float64
	readOnly   bool
)

var rootCmd = &cobra.Command{
	Use:   "menger",
	Short: "Embedded multi-dimensional OLAP engine",
	Long: `menger is a CLI for an embedded multi-dimensional OLAP engine: a set of
hierarchical dimensions, cubes ("spaces") of measures keyed by those
dimensions, and the query/load operations that run against them.

Features:
  - Closure-table dimensions with reparent, merge, prune and rename
  - Dice queries grouping by dimension, level or fixed coordinate
  - Stored and computed measures
  - Materialized-view profile cache for repeated queries
  - Runtime integrity verification`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "menger.yaml",
		"Path to runtime configuration file")
	rootCmd.PersistentFlags().StringVarP(&schemaFile, "schema", "s", "schema.yaml",
		"Path to space/dimension/measure schema file")
	rootCmd.PersistentFlags().StringVar(&storeURI, "store", "",
		"Override store URI (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Float64Var(&cacheRatio, "cache-ratio", 0,
		"Override profile cache ratio")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "readonly", false,
		"Open the store read-only")
}

// session bundles everything a subcommand needs: the open store, its
// compiled spaces and dimensions, and a logger, plus a close function the
// caller must defer.
type session struct {
	cfg      *config.Config
	mgr      *backend.Manager
	store    *backend.Session
	spaces   map[string]*space.Space
	dims     map[string]*dimension.Tree
	profiles *profile.Registry
	log      *logger.Logger
}

func openSession(cmd *cobra.Command) (*session, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	cfg.ApplyOverrides(storeURI, logLevel, readOnly, cacheRatio)

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	mgr, err := backend.Open(context.Background(), cfg.Store.URI, cfg.Store.ReadOnly, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	store := mgr.NewSession(cfg.Store.ReadOnly)

	schemaCfg, err := config.LoadSchema(schemaFile)
	if err != nil {
		_ = mgr.Close()
		return nil, nil, fmt.Errorf("failed to load schema: %w", err)
	}

	builder := schema.NewBuilder(schemaCfg, store)
	spaces, dims, err := builder.Build()
	if err != nil {
		_ = mgr.Close()
		return nil, nil, fmt.Errorf("failed to build schema: %w", err)
	}

	profiles, err := profile.New(store, cfg.Profile.CacheRatio)
	if err != nil {
		_ = mgr.Close()
		return nil, nil, fmt.Errorf("failed to initialize profile cache: %w", err)
	}
	for _, sp := range spaces {
		// snapshot=true: rebuild each space's hot set, (re)materializing
		// ghost profiles within the cache-ratio budget from accumulated hit
		// counts, so a dice run against this session can actually land on a
		// profile instead of always falling back to the full fact table.
		if err := profiles.Register(sp, dims, true); err != nil {
			_ = mgr.Close()
			return nil, nil, fmt.Errorf("failed to load profile cache: %w", err)
		}
	}

	s := &session{cfg: cfg, mgr: mgr, store: store, spaces: spaces, dims: dims, profiles: profiles, log: log}
	cleanup := func() {
		_ = log.Sync()
		_ = mgr.Close()
	}
	return s, cleanup, nil
}

func (s *session) space(name string) (*space.Space, error) {
	sp, ok := s.spaces[name]
	if !ok {
		return nil, fmt.Errorf("unknown space %q", name)
	}
	return sp, nil
}

func (s *session) dimension(name string) (*dimension.Tree, error) {
	dim, ok := s.dims[name]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", name)
	}
	return dim, nil
}
