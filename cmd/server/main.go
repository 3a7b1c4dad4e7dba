package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/soulst9/nestjs-practice/internal/cache"
	"github.com/soulst9/nestjs-practice/internal/config"
	"github.com/soulst9/nestjs-practice/internal/database"
	"github.com/soulst9/nestjs-practice/internal/handler"
	"github.com/soulst9/nestjs-practice/internal/middleware"
	"github.com/soulst9/nestjs-practice/internal/model"
	"github.com/soulst9/nestjs-practice/internal/oidc"
	"github.com/soulst9/nestjs-practice/internal/queue"
	"github.com/soulst9/nestjs-practice/internal/repository"
	"github.com/soulst9/nestjs-practice/internal/router"
	"github.com/soulst9/nestjs-practice/internal/service"
	"github.com/soulst9/nestjs-practice/internal/token"
)

func main() {
	// .env is optional; real deployments inject environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	cfg := config.Load()

	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		} else {
			log.Printf("invalid TZ %q: %v", cfg.Timezone, err)
		}
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// The cache and the auth flows both need Redis; refusing to start
	// beats silently serving without it.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis connect failed")
	}
	defer rdb.Close()

	store := cache.NewClient(rdb)
	userCache := cache.NewAside[model.User](store, cache.DefaultTTL)

	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewUserRoleRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	users := service.NewUserService(userRepo, roleRepo, userCache)
	tokens := token.NewService(cfg.AccessToken, cfg.RefreshToken, cfg.IDToken)
	okta := oidc.New(cfg.Okta)
	events := queue.NewPublisher()

	auth := service.NewAuthService(users, tokens, okta, tokenRepo, events,
		cfg.BcryptCost, cfg.RefreshToken.ExpiresIn, cfg.Okta.RequiredRoles)

	go func() {
		if err := queue.StartAuthEventConsumer(); err != nil {
			log.Printf("auth event consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	router.Register(e, router.Deps{
		Cfg:       cfg,
		Auth:      handler.NewAuthHandler(cfg, auth),
		Users:     handler.NewUserHandler(users),
		Health:    handler.NewHealthHandler(db, store),
		Verifier:  tokens,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
