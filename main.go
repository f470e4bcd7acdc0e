// battwatch — battery telemetry dashboard core.
// Polls a battery-monitor bridge endpoint, tracks connection health, keeps a
// rolling chart window, and exposes read-only snapshots over a local API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voltlab/battwatch/internal/client"
	"github.com/voltlab/battwatch/internal/config"
	"github.com/voltlab/battwatch/internal/dashboard"
	"github.com/voltlab/battwatch/internal/poller"
	"github.com/voltlab/battwatch/internal/server"
	"github.com/voltlab/battwatch/internal/session"
)

const asciiLogo = `
 ██████╗  █████╗ ████████╗████████╗██╗    ██╗ █████╗ ████████╗ ██████╗██╗  ██╗
 ██╔══██╗██╔══██╗╚══██╔══╝╚══██╔══╝██║    ██║██╔══██╗╚══██╔══╝██╔════╝██║  ██║
 ██████╔╝███████║   ██║      ██║   ██║ █╗ ██║███████║   ██║   ██║     ███████║
 ██╔══██╗██╔══██║   ██║      ██║   ██║███╗██║██╔══██║   ██║   ██║     ██╔══██║
 ██████╔╝██║  ██║   ██║      ██║   ╚███╔███╔╝██║  ██║   ██║   ╚██████╗██║  ██║
 ╚═════╝ ╚═╝  ╚═╝   ╚═╝      ╚═╝    ╚══╝╚══╝ ╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝
`

const version = "v0.1.0"

func printBanner(mode string) {
	fmt.Print(asciiLogo, "\n")
	fmt.Printf("  ► battwatch %s  |  Mode: %s\n\n", version, mode)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().Timestamp().Logger()
}

// corsMiddleware lets a separately served UI hit the local API during
// development.
func corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}
	c.Next()
}

// runHTTP serves the engine until SIGINT, then shuts down gracefully.
func runHTTP(addr string, engine *gin.Engine) error {
	srv := &http.Server{Addr: addr, Handler: engine}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	select {
	case err := <-errCh:
		return err
	case <-quit:
		fmt.Println("\n  → Shutting down gracefully…")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func main() {
	root := &cobra.Command{
		Use:   "battwatch",
		Short: "battwatch — battery telemetry dashboard core",
		Long: `battwatch polls a battery-monitor bridge endpoint for live telemetry
and a paginated history log, derives device/server liveness, and exposes
gauges, trend series, and history pages to any presentation layer over a
local read-only API.`,
		SilenceUsage: true,
	}

	// ── watch subcommand ──────────────────────────────────────────────────────
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the data source and serve the local dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("WATCH")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// CLI flags override config values.
			if endpoint, _ := cmd.Flags().GetString("endpoint"); endpoint != "" {
				cfg.EndpointURL = endpoint
			}
			if interval, _ := cmd.Flags().GetInt("interval-ms"); interval > 0 {
				cfg.PollIntervalMs = interval
			}
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				cfg.ListenAddr = listen
			}

			log := newLogger(cfg.LogLevel)
			log.Info().Str("endpoint", cfg.EndpointURL).
				Dur("interval", cfg.PollInterval()).
				Msg("starting watch")

			c := client.New(cfg.EndpointURL, cfg.DataTimeout(), cfg.ProbeTimeout())
			sess := session.New(c, session.Options{
				Window:       cfg.SeriesWindow,
				PageSize:     cfg.HistoryPageSize,
				OfflineAfter: cfg.OfflineAfter(),
			}, log)

			p := poller.New(sess, c, cfg.PollInterval(), log)
			p.Start(context.Background())
			defer p.Stop()

			// Preload the first history page; a failure here is just a notice,
			// the table stays empty until the user retries.
			if err := sess.LoadHistoryPage(context.Background(), 1); err != nil {
				log.Warn().Err(err).Msg("initial history load failed")
			}

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(gin.Recovery(), corsMiddleware)
			dashboard.RegisterRoutes(engine, sess, p)
			dashboard.RegisterStaticFiles(engine)

			fmt.Printf("  ✓ Dashboard API → http://%s\n", cfg.ListenAddr)
			fmt.Printf("  ✓ Polling       → %s every %s\n\n", cfg.EndpointURL, cfg.PollInterval())

			return runHTTP(cfg.ListenAddr, engine)
		},
	}
	watchCmd.Flags().String("endpoint", "", "Data source URL, e.g. http://192.168.1.50/api")
	watchCmd.Flags().Int("interval-ms", 0, "Poll interval in milliseconds (overrides config)")
	watchCmd.Flags().String("listen", "", "Local API listen address, e.g. 127.0.0.1:8787")

	// ── serve subcommand ──────────────────────────────────────────────────────
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development data source (simulator + reading log)",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("SERVE")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				cfg.ServeAddr = listen
			}
			if db, _ := cmd.Flags().GetString("db"); db != "" {
				cfg.DBPath = db
			}
			if source, _ := cmd.Flags().GetString("source"); source != "" {
				cfg.SimSource = source
			}

			log := newLogger(cfg.LogLevel)

			if err := server.InitDB(cfg); err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			log.Info().Str("db", cfg.DBPath).Msg("reading log opened")

			sim := server.StartSimulator(context.Background(), cfg, log)
			defer sim.Stop()

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(gin.Recovery(), corsMiddleware)
			server.RegisterRoutes(engine, cfg)

			fmt.Printf("  ✓ Data source  → http://%s/api?action=getLatest\n", cfg.ServeAddr)
			fmt.Printf("  ✓ Simulator    → %s readings every %s\n\n", cfg.SimSource, cfg.SimInterval())

			return runHTTP(cfg.ServeAddr, engine)
		},
	}
	serveCmd.Flags().String("listen", "", "Listen address, e.g. 0.0.0.0:8686")
	serveCmd.Flags().String("db", "", "SQLite path for the reading log")
	serveCmd.Flags().String("source", "", "Simulator temperature source: synthetic | host")

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print battwatch version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("battwatch %s\n", version)
		},
	}

	root.AddCommand(watchCmd, serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
