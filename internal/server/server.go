package server

import (
	"context"
	"log"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/auth"
	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/beatplan"
	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/config"
	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/directory"
	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/stream"
	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/tracking"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Hub      *stream.Hub
	Tracking *tracking.Service
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)
	registry := tracking.NewRegistry(redisClient)
	plans := beatplan.NewService(db)
	trackingSvc := tracking.NewService(tracking.NewStore(db), plans, registry, hub)

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Hub:      hub,
		Tracking: trackingSvc,
	}

	if db != nil {
		// The routing cache is advisory; repopulate it from the store so a
		// restart does not orphan open sessions.
		if err := trackingSvc.RebuildRegistry(context.Background(), ""); err != nil {
			log.Printf("registry rebuild failed: %v", err)
		}
	}

	registerRoutes(s, plans)
	return s
}

func registerRoutes(s *Server, plans *beatplan.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	authSvc := auth.NewService(s.Cfg.JWTSecret, s.DB)

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	directory.RegisterRoutes(s.App.Group("/directories"), directory.NewService(s.DB), jwtMiddleware)
	beatplan.RegisterRoutes(s.App.Group("/beatplans"), plans, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Hub, authSvc, s.Tracking)
}
