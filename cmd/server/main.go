package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/testerhub/code-pool-reservation/internal/config"
	"github.com/testerhub/code-pool-reservation/internal/database"
	"github.com/testerhub/code-pool-reservation/internal/handler"
	appmw "github.com/testerhub/code-pool-reservation/internal/middleware"
	"github.com/testerhub/code-pool-reservation/internal/queue"
	"github.com/testerhub/code-pool-reservation/internal/repository"
	"github.com/testerhub/code-pool-reservation/internal/router"
	"github.com/testerhub/code-pool-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient() // nil when Redis is unreachable; limiter/cache degrade

	codeRepo := repository.NewCodeRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	regionRepo := repository.NewRegionRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	alloc := service.NewAllocator(db, codeRepo, auditRepo, cfg.ReleaseOwnerOnly)
	prov := service.NewProvisioner(db, codeRepo, auditRepo, regionRepo)

	authH := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	codeH := handler.NewCodeHandler(alloc)
	adminCodeH := handler.NewAdminCodeHandler(prov, alloc, codeRepo)
	adminUserH := handler.NewAdminUserHandler(cfg, userRepo, tokenRepo)
	adminLogH := handler.NewAdminLogHandler(auditRepo)
	regionH := handler.NewRegionHandler(regionRepo)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	limiter := appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := appmw.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterLookups(e, regionH)
	router.RegisterCodes(e, codeH, cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, adminCodeH, adminUserH, adminLogH, cfg.JWTSecret, cache)

	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity-consumer stopped: %v", err)
		}
	}()

	if cfg.ExpireEnabled {
		go runExpireSweep(alloc, cfg.ExpireAfter, cfg.ExpireEvery)
	}

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// runExpireSweep periodically returns stale reservations to the pool.
func runExpireSweep(alloc *service.Allocator, maxAge, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		released, err := alloc.ExpireStale(ctx, maxAge, 100)
		cancel()
		if err != nil {
			log.Printf("expire-sweep: %v", err)
			continue
		}
		if len(released) > 0 {
			log.Printf("expire-sweep: released %d stale codes", len(released))
		}
	}
}
