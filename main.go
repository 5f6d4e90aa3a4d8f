package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backoffice/cache"
	"backoffice/config"
	"backoffice/controllers"
	"backoffice/handlers"
	"backoffice/middleware"
	"backoffice/repository"
	"backoffice/routes"
	"backoffice/services"
	"backoffice/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var configPath string

// app is everything a command needs after configuration has been loaded.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *repository.Store
	db      *config.Database
	cache   cache.Cache
	svc     *services.Services
	closers []func(context.Context) error
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Shutdown step failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, cache: cache.Nop{}}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("Using the in-memory store, data is lost on exit")
		a.store = repository.NewMemoryStore()
	default:
		db, err := config.ConnectDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Disconnect)
		a.store = repository.NewMongoStore(db, cfg.Mongo.Transactions)
	}

	if cfg.Redis.Enabled {
		rdb, err := config.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		a.cache = cache.NewRedisCache(rdb)
	}

	a.svc = services.New(a.store, a.cache, logger, services.Options{
		RequestOrderTTL: cfg.RequestOrderTTL(),
		ExpiryWindow:    cfg.ExpiryWindow(),
		CacheTTL:        cfg.CacheTTL(),
		TokenTTL:        cfg.TokenTTL(),
		JWTSecret:       []byte(cfg.Auth.JWTSecret),
		AdminUID:        cfg.Auth.AdminUID,
		Location:        cfg.Location(),
		Metrics:         middleware.LedgerMetrics{},
	})
	return a, nil
}

func newRouter(a *app) (*gin.Engine, error) {
	gin.SetMode(a.cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(a.logger))

	middleware.InitMetrics()
	r.Use(middleware.PrometheusMiddleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	limit, err := middleware.RateLimit(a.cfg.RateLimit.Public)
	if err != nil {
		return nil, err
	}

	routes.InitializeRoutes(r, routes.Deps{
		Controller:      controllers.NewController(a.svc, a.logger, a.cfg.Server.Mode == gin.ReleaseMode, a.cfg.TokenTTL()),
		Public:          handlers.NewPublic(a.svc, a.logger),
		Auth:            a.svc.Auth,
		PublicRateLimit: limit,
		MetricsIPs:      a.cfg.Metrics.AllowedIPs,
	})
	return r, nil
}

// sweep flips overdue request orders and drops ended sessions.
func sweep(a *app) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.MongoTimeout())
		defer cancel()

		if _, err := a.svc.Orders.ExpireRequests(ctx); err != nil {
			a.logger.Error("Request order expiry failed", zap.Error(err))
		}
		if n, err := a.svc.Auth.PurgeSessions(ctx); err != nil {
			a.logger.Error("Session purge failed", zap.Error(err))
		} else if n > 0 {
			a.logger.Debug("Sessions purged", zap.Int64("count", n))
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.db != nil {
		if err := a.db.EnsureIndexes(ctx); err != nil {
			return err
		}
	}

	router, err := newRouter(a)
	if err != nil {
		return err
	}

	scheduler, err := utils.NewSweepScheduler(a.cfg.Location(), a.cfg.SweepInterval(), sweep(a))
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server listening", zap.String("addr", srv.Addr), zap.String("mode", gin.Mode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runIndexes(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	if a.db == nil {
		return errors.New("indexes need the mongo backend")
	}
	if err := a.db.EnsureIndexes(cmd.Context()); err != nil {
		return err
	}
	a.logger.Info("Indexes ensured")
	return nil
}

func runExpire(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	n, err := a.svc.Orders.ExpireRequests(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "expired %d request orders\n", n)
	return nil
}

func newCreateAdminCmd() *cobra.Command {
	var username, password, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			u, err := a.svc.Auth.CreateAdmin(cmd.Context(), username, password, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Username, u.ID.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 6 characters")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "backoffice",
		Short:         "Back office for orders, invoices and the stock ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP server and the expiry sweep", RunE: runServe},
		&cobra.Command{Use: "indexes", Short: "Create the MongoDB indexes", RunE: runIndexes},
		&cobra.Command{Use: "expire-requests", Short: "Expire overdue request orders once", RunE: runExpire},
		newCreateAdminCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
