package server

import (
	"backend-hikepal/internal/advisor"
	"backend-hikepal/internal/auth"
	"backend-hikepal/internal/companion"
	"backend-hikepal/internal/config"
	"backend-hikepal/internal/db"
	"backend-hikepal/internal/hike"
	applog "backend-hikepal/internal/logger"
	"backend-hikepal/internal/riskzone"
	"backend-hikepal/internal/stream"
	"backend-hikepal/internal/tracking"
	"backend-hikepal/internal/waypoint"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Stream    *stream.Hub
	Companion *companion.Manager
	Log       *zap.Logger
}

func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, log *zap.Logger) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	log = applog.OrNop(log)
	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Log:    log,
	}

	registerRoutes(s)
	return s
}

// Close ends every companion session and the stream subscription.
func (s *Server) Close() {
	s.Companion.Close()
	s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	q := db.FromPool(s.DB)
	authSvc := auth.NewService(s.Cfg.JWTSecret)
	jwtMiddleware := auth.JWTMiddleware(authSvc)

	zoneStore := riskzone.NewStore(q)
	catalog := riskzone.NewCatalog(zoneStore,
		riskzone.WithTTL(s.Cfg.ZoneCacheTTL),
		riskzone.WithDefaultRadius(s.Cfg.DefaultZoneRadiusM),
		riskzone.WithLogger(s.Log),
	)
	waypoints := waypoint.NewService(q)
	tracks := tracking.NewService(q, s.Stream, waypoints)
	hikes := hike.NewService(q)

	// without a store there is no hike lifecycle to enforce
	var hikeStatus companion.HikeStatusFunc
	if q != nil {
		hikeStatus = hikes.Status
	}

	s.Companion = companion.NewManager(companion.Settings{
		UploadInterval:     s.Cfg.UploadInterval,
		TeammateStaleAfter: s.Cfg.TeammateStaleAfter,
		FeedStaleAfter:     s.Cfg.FeedStaleAfter,
		RouteName:          s.Cfg.DefaultRouteName,
		Simulate:           s.Cfg.SimulatePositions,
		SimulationStep:     s.Cfg.SimulationStep,
	}, companion.Deps{
		Hub:        s.Stream,
		HikeStatus: hikeStatus,
		Zones:      catalog,
		Locations:  tracks,
		Tracks:     tracks,
		Advisor:    advisor.New(s.Cfg.GeminiAPIKey, s.Cfg.GeminiModel, s.Cfg.GeminiBaseURL, advisor.WithLogger(s.Log)),
		Log:        s.Log,
	})

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	riskzone.RegisterRoutes(s.App.Group("/risk-zones"), zoneStore, catalog, jwtMiddleware)
	hike.RegisterRoutes(s.App.Group("/hikes"), hikes, jwtMiddleware, s.Companion.RecordingStatus)
	companion.RegisterRoutes(s.App.Group("/companion"), s.Companion, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), tracks)
	tracking.RegisterTrackRoutes(s.App.Group("/tracks"), tracks)
	waypoint.RegisterRoutes(s.App.Group("/waypoints"), waypoints, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
