// Package app wires configuration, storage, and the HTTP surface into a
// runnable identity server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stackpass/identity/internal/auth"
	"github.com/stackpass/identity/internal/config"
	"github.com/stackpass/identity/internal/db"
	"github.com/stackpass/identity/internal/denylist"
	adminapi "github.com/stackpass/identity/internal/http/api/admin"
	authapi "github.com/stackpass/identity/internal/http/api/auth"
	"github.com/stackpass/identity/internal/notifier"
	"github.com/stackpass/identity/internal/ratelimit"

	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the identity server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtConfig, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}
	if jwtConfig.Secret == "" {
		return fmt.Errorf("missing jwt secret (set `jwt.secret` in config file or env %s)", config.EnvJWTSecret)
	}
	cookieConfig, errCookie := config.LoadCookieConfig(configPath)
	if errCookie != nil {
		return errCookie
	}
	redisConfig, errRedis := config.LoadRedisConfig(configPath)
	if errRedis != nil {
		return errRedis
	}
	rateLimits, errLimits := config.LoadRateLimitConfig(configPath)
	if errLimits != nil {
		return errLimits
	}

	var redisClient *redis.Client
	if redisConfig.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.Addr,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})
		if errPing := redisClient.Ping(ctx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable at startup, continuing with in-memory fallbacks")
		}
	}

	var dl denylist.Denylist
	if redisClient != nil {
		dl = denylist.NewRedisDenylist(redisClient, redisConfig.Prefix, jwtConfig.RefreshExpiry)
	} else {
		dl = denylist.NewMemoryDenylist(jwtConfig.RefreshExpiry)
	}
	limiter := ratelimit.NewManager(redisClient, redisConfig.Prefix)

	service := auth.NewService(conn, notifier.NewLogNotifier(), auth.TokenConfig{
		Secret:     jwtConfig.Secret,
		AccessTTL:  jwtConfig.Expiry,
		RefreshTTL: jwtConfig.RefreshExpiry,
	}, dl)

	bootstrap, errBootstrap := config.LoadBootstrapConfig(configPath)
	if errBootstrap != nil {
		return errBootstrap
	}
	if errSeed := EnsureBootstrapSuperuser(conn, bootstrap); errSeed != nil {
		return errSeed
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	authapi.RegisterAuthRoutes(engine, conn, service, cookieConfig, limiter, rateLimits)
	adminapi.RegisterAdminRoutes(engine, conn, service)

	if defaultPort <= 0 {
		defaultPort = 8600
	}
	addr := fmt.Sprintf(":%d", defaultPort)

	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting identity server on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && errListen != http.ErrServerClosed {
		return errListen
	}
	return nil
}
