package main

import (
	"context"
	"errors"
	myHTTP "github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/http"
	httpmw "github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/http/middleware"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/app/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/app/auth/password"
	appsvc "github.com/Miraines/MoonyAndStarry/weather-auth/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/server"
	"golang.org/x/sync/errgroup"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// до загрузки конфига уровень берём из env, потом из cfg (там и config.json)
	bootLog := lg.Must(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("failed to load config", zap.Error(err))
	}
	_ = bootLog.Sync()

	zapLog := lg.Must(cfg.LogLevel)
	defer zapLog.Sync()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(rootCtx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("failed to open user store", zap.String("store", cfg.UserStore), zap.Error(err))
	}
	defer closeStore()

	hasher, err := password.New(cfg.PasswordHasher)
	if err != nil {
		zapLog.Fatal("failed to init password hasher", zap.Error(err))
	}
	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}
	svc := appsvc.New(store, jwtUtil, hasher, validator.New())

	router := newRouter(cfg, svc, store, zapLog, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)

	if cfg.GRPCAddress != "" {
		g.Go(func() error {
			return server.StartGRPCServer(ctx, cfg, store, zapLog)
		})
	}

	g.Go(func() error {
		zapLog.Info("HTTP server listening",
			zap.String("addr", cfg.HTTPAddress),
			zap.Bool("tls", cfg.TLSEnabled()),
			zap.String("store", cfg.UserStore),
		)
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zapLog.Info("shutdown signal received")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctxShutdown)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}

func newRouter(
	cfg *config.Config,
	svc appsvc.Service,
	store repo.UserStore,
	zapLog *zap.Logger,
	reg prometheus.Registerer,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(zapLog))
	router.Use(httpmw.NewHTTPMetrics(reg).Middleware())
	router.Use(httpmw.NewHTTPRateLimitPerIP(cfg.RateLimitRPS, cfg.RateLimitBurst, 10_000, time.Hour))

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Origin", "Content-Type", "Accept",
				"Authorization",
				"X-Requested-With",
			},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: cfg.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}))
	}

	myHTTP.NewHandler(svc, zapLog, myHTTP.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	}).RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			zapLog.Warn("health: store ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "time": time.Now().Unix()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))))

	return router
}
