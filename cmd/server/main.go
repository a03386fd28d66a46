package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"pooldemo/internal/config"
	dbpkg "pooldemo/internal/db"
	httpx "pooldemo/internal/http"
	"pooldemo/internal/logger"
)

var version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
	log        *zap.Logger
}

func main() {
	a := &app{v: viper.New()}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pooldemo",
		Short:         "Example service over a warmed PostgreSQL connection pool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML config file")

	serve := a.serveCmd()
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, a.migrateCmd(), a.tokenCmd(), versionCmd())
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}
	cmd.Flags().String("listen", "", "listen address (overrides LISTEN_ADDR)")
	_ = a.v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen"))
	return cmd
}

func (a *app) serve() error {
	cfg, log := a.cfg, a.log
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Migrate {
		changed, err := dbpkg.Migrate(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		log.Info("migrations applied", zap.Bool("changed", changed))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := dbpkg.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		return err
	}
	defer pool.Close()

	warmer := dbpkg.NewWarmer(pool, cfg.Pool.WarmupConns, log)
	srv := httpx.NewServer(&httpx.PoolStore{Pool: pool}, httpx.Options{
		Log:        log,
		Warm:       warmer,
		JWTSecret:  cfg.JWTSecret,
		CORSOrigin: cfg.CORSOrigin,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	httpSrv := &http.Server{
		Handler:           h2c.NewHandler(srv.R, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
	}()

	// the listener is up, so this is the "application started" point
	warmer.Start(ctx)

	log.Info("listening", zap.String("addr", ln.Addr().String()),
		zap.Int32("max_conns", pool.Config().MaxConns),
		zap.Duration("max_idle_time", pool.Config().MaxConnIdleTime))
	if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			changed, err := dbpkg.Migrate(a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			a.log.Info("migrations applied", zap.Bool("changed", changed))
			return nil
		},
	}
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the read endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := httpx.IssueToken(a.cfg.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pooldemo v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
