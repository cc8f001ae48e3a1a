package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/akquise-tool/internal/audit"
	"github.com/akquise-tool/internal/cache"
	"github.com/akquise-tool/internal/config"
	"github.com/akquise-tool/internal/db"
	"github.com/akquise-tool/internal/engine"
	"github.com/akquise-tool/internal/housenumber"
	"github.com/akquise-tool/internal/metrics"
	"github.com/akquise-tool/internal/record"
	"github.com/akquise-tool/internal/resultcache"
	"github.com/akquise-tool/internal/store"
	"github.com/akquise-tool/internal/watch"
	"github.com/akquise-tool/internal/web"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "akquise",
		Short: "Address matching and deduplication service for field sales",
		Long: `Matches queried addresses against existing customers and field visit
datasets, and guards new visits with a recency lock per address and
house number range.`,
	}

	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createRefreshCmd())
	rootCmd.AddCommand(createSearchCmd())
	rootCmd.AddCommand(createCheckLockCmd())
	rootCmd.AddCommand(createExpandCmd())
	rootCmd.AddCommand(createImportCustomersCmd())
	rootCmd.AddCommand(createStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// mustConfig loads the environment configuration or exits.
func mustConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// mustConnect opens the Postgres connection or exits.
func mustConnect(cfg config.Config) *db.Connection {
	conn, err := db.NewConnection(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return conn
}

// customerSource prefers the office sheet export when one is configured and
// falls back to the imported customer table.
func customerSource(cfg config.Config, pg *store.Postgres) store.CustomerSource {
	if cfg.Sheet.Path != "" {
		return store.NewSheet(cfg.Sheet.Path)
	}
	return pg
}

// loadEngine builds a read-only engine over a freshly loaded cache.
func loadEngine(ctx context.Context, cfg config.Config, pg *store.Postgres) *engine.Engine {
	cacheStore := cache.NewStore()
	refresher := &store.Refresher{Customers: customerSource(cfg, pg), Datasets: pg, Cache: cacheStore}
	if err := refresher.Refresh(ctx); err != nil {
		log.Fatalf("Failed to load records: %v", err)
	}
	return engine.New(engine.Config{Store: cacheStore, Window: cfg.LockWindow()})
}

// createServeCmd creates the serve subcommand running the HTTP API.
func createServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  `Load all record sources into the in-memory cache, keep it fresh via file watching and periodic refresh, and serve the matching API`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig()
			conn := mustConnect(cfg)
			defer conn.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pg := store.NewPostgres(conn)
			if err := pg.EnsureSchema(ctx); err != nil {
				log.Fatalf("Failed to ensure schema: %v", err)
			}
			tracker := audit.NewTracker(conn.DB)
			if err := tracker.EnsureSchema(ctx); err != nil {
				log.Fatalf("Failed to ensure audit schema: %v", err)
			}

			registry := prometheus.NewRegistry()
			m := metrics.NewMetrics(registry)

			cacheStore := cache.NewStore()
			refresher := &store.Refresher{
				Customers: customerSource(cfg, pg),
				Datasets:  pg,
				Cache:     cacheStore,
				Metrics:   m,
			}
			if err := refresher.Refresh(ctx); err != nil {
				log.WithError(err).Warn("Initial refresh failed, serving an empty cache until sources recover")
			}

			eng := engine.New(engine.Config{
				Store:   cacheStore,
				Sink:    pg,
				Auditor: tracker,
				Metrics: m,
				Window:  cfg.LockWindow(),
			})

			results := resultcache.New(cfg.ResultCache.Addr, cfg.ResultCache.Password, cfg.ResultCache.DB, cfg.ResultCache.TTL)
			defer results.Close()

			if cfg.Sheet.Path != "" {
				watcher, err := watch.New(cfg.Sheet.Path, cfg.Sheet.WatchDebounce, func(ctx context.Context) {
					if err := refresher.Refresh(ctx); err != nil {
						log.WithError(err).Error("Sheet refresh failed")
					}
				})
				if err != nil {
					log.WithError(err).Warn("Sheet watcher disabled")
				} else {
					go func() {
						if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
							log.WithError(err).Error("Sheet watcher stopped")
						}
					}()
				}
			}

			if cfg.Matching.RefreshInterval > 0 {
				go runPeriodicRefresh(ctx, refresher, cfg.Matching.RefreshInterval)
			}

			srv := web.NewServer(web.Config{
				Addr:          cfg.Server.Addr,
				APIKey:        cfg.Server.APIKey,
				AllowedOrigin: cfg.Server.AllowedOrigin,
				ReadTimeout:   cfg.Server.ReadTimeout,
				WriteTimeout:  cfg.Server.WriteTimeout,
			}, web.Deps{
				Engine:    eng,
				Store:     cacheStore,
				Tracker:   tracker,
				Refresher: refresher,
				Cache:     results,
				Gatherer:  registry,
			})

			if err := srv.Run(ctx); err != nil {
				log.Fatalf("Server failed: %v", err)
			}
		},
	}
}

func runPeriodicRefresh(ctx context.Context, refresher *store.Refresher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresher.Refresh(ctx); err != nil {
				log.WithError(err).Error("Periodic refresh failed")
			}
		}
	}
}

// createRefreshCmd creates the one-shot refresh subcommand.
func createRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the cache from all sources once and print counts",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig()
			conn := mustConnect(cfg)
			defer conn.Close()

			ctx := context.Background()
			pg := store.NewPostgres(conn)
			cacheStore := cache.NewStore()
			refresher := &store.Refresher{Customers: customerSource(cfg, pg), Datasets: pg, Cache: cacheStore}

			if err := refresher.Refresh(ctx); err != nil {
				log.Fatalf("Refresh failed: %v", err)
			}

			customers, datasets := cacheStore.Snapshot().Counts()
			fmt.Printf("Customers loaded: %d\n", customers)
			fmt.Printf("Datasets loaded:  %d\n", datasets)
		},
	}
}

// createSearchCmd creates the search subcommand.
func createSearchCmd() *cobra.Command {
	var street, houseNumber, postalCode, city string
	var limit int
	var showDatasets bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search customers or datasets at an address",
		Run: func(cmd *cobra.Command, args []string) {
			if street == "" {
				log.Fatal("--street is required")
			}

			cfg := mustConfig()
			conn := mustConnect(cfg)
			defer conn.Close()

			ctx := context.Background()
			eng := loadEngine(ctx, cfg, store.NewPostgres(conn))

			q := record.AddressQuery{Street: street, HouseNumber: houseNumber, PostalCode: postalCode, City: city}

			if showDatasets {
				results := eng.SearchDatasets(q, limit)
				fmt.Printf("%d datasets at %q\n", len(results), q.Key())
				for _, d := range results {
					fmt.Printf("  %s  Nr. %-8s  by %-12s  %s\n",
						d.CreatedAt.Format("2006-01-02"), d.HouseNumber, d.CreatedBy, d.Notes)
				}
				return
			}

			results := eng.SearchCustomers(q, limit)
			fmt.Printf("%d customers at %q\n", len(results), q.Key())
			for _, c := range results {
				fmt.Printf("  %-24s  %s %s, %s %s\n", c.Name, c.Street, c.HouseNumber, c.PostalCode, c.City)
			}
		},
	}

	cmd.Flags().StringVar(&street, "street", "", "Street name")
	cmd.Flags().StringVar(&houseNumber, "house-number", "", "House number expression, e.g. 1,3-5")
	cmd.Flags().StringVar(&postalCode, "postal-code", "", "Postal code")
	cmd.Flags().StringVar(&city, "city", "", "City (informational, not matched)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results (0 = default)")
	cmd.Flags().BoolVar(&showDatasets, "datasets", false, "Search field visit datasets instead of customers")

	return cmd
}

// createCheckLockCmd creates the check-lock subcommand.
func createCheckLockCmd() *cobra.Command {
	var street, houseNumber, postalCode, agent string
	var history bool

	cmd := &cobra.Command{
		Use:   "check-lock",
		Short: "Preview the creation lock decision for an address",
		Run: func(cmd *cobra.Command, args []string) {
			if street == "" || agent == "" {
				log.Fatal("--street and --agent are required")
			}

			cfg := mustConfig()
			conn := mustConnect(cfg)
			defer conn.Close()

			ctx := context.Background()
			eng := loadEngine(ctx, cfg, store.NewPostgres(conn))

			q := record.AddressQuery{Street: street, HouseNumber: houseNumber, PostalCode: postalCode}
			decision, err := eng.CheckCreationLock(ctx, q, agent)
			if err != nil {
				log.Fatalf("Failed to check creation lock: %v", err)
			}

			if decision.Allowed {
				fmt.Printf("ALLOWED (%s)\n", decision.Reason)
			} else {
				b := decision.Blocking
				fmt.Printf("BLOCKED: visited by %s on %s\n", b.CreatedBy, b.CreatedAt.Format("2006-01-02"))
			}

			if history {
				entries, err := audit.NewTracker(conn.DB).History(ctx, q.Key(), 20)
				if err != nil {
					log.Fatalf("Failed to load lock history: %v", err)
				}
				if len(entries) == 0 {
					fmt.Println("No recorded decisions for this address")
					return
				}

				fmt.Println("\nRecent decisions:")
				for _, e := range entries {
					outcome := "allowed"
					if !e.Allowed {
						outcome = "blocked by " + e.BlockedBy
					}
					fmt.Printf("  %s  %-12s  %s (%s)\n",
						e.CreatedAt.Format("2006-01-02 15:04"), e.AgentID, outcome, e.Reason)
				}
			}
		},
	}

	cmd.Flags().StringVar(&street, "street", "", "Street name")
	cmd.Flags().StringVar(&houseNumber, "house-number", "", "House number expression, e.g. 1,3-5")
	cmd.Flags().StringVar(&postalCode, "postal-code", "", "Postal code")
	cmd.Flags().StringVar(&agent, "agent", "", "Agent identity asking for the lock")
	cmd.Flags().BoolVar(&history, "history", false, "Also print recorded decisions for this address")

	return cmd
}

// createExpandCmd creates the expand subcommand, a debugging aid for house
// number expressions.
func createExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand [expression]",
		Short: "Expand a house number expression into its tokens",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			tokens := housenumber.Expand(args[0]).Sorted()
			fmt.Printf("%d tokens: %s\n", len(tokens), strings.Join(tokens, " "))
		},
	}
}

// createImportCustomersCmd creates the import-customers subcommand.
func createImportCustomersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-customers [filename]",
		Short: "Import a customer sheet CSV into the customer table",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig()
			conn := mustConnect(cfg)
			defer conn.Close()

			ctx := context.Background()
			pg := store.NewPostgres(conn)
			if err := pg.EnsureSchema(ctx); err != nil {
				log.Fatalf("Failed to ensure schema: %v", err)
			}

			customers, err := store.NewSheet(args[0]).LoadCustomers(ctx)
			if err != nil {
				log.Fatalf("Failed to read customer sheet: %v", err)
			}

			imported, err := pg.ImportCustomers(ctx, customers)
			if err != nil {
				log.Fatalf("Import failed: %v", err)
			}

			fmt.Printf("Rows read:     %d\n", len(customers))
			fmt.Printf("Rows imported: %d\n", imported)
		},
	}
}

// createStatsCmd creates the stats subcommand.
func createStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show persisted row counts and lock decision totals",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig()
			conn := mustConnect(cfg)
			defer conn.Close()

			ctx := context.Background()
			customers, datasets, err := store.NewPostgres(conn).Counts(ctx)
			if err != nil {
				log.Fatalf("Failed to count rows: %v", err)
			}

			fmt.Printf("Customers: %d\n", customers)
			fmt.Printf("Datasets:  %d\n", datasets)

			summary, err := audit.NewTracker(conn.DB).Summarize(ctx)
			if err != nil {
				log.WithError(err).Warn("No lock decision statistics available")
				return
			}
			fmt.Printf("Lock decisions: %d\n", summary.Total)
			for reason, count := range summary.ByReason {
				fmt.Printf("  %-16s %d\n", reason, count)
			}
		},
	}
}
