package server

import (
	"errors"

	"backend-birdtours/internal/auth"
	"backend-birdtours/internal/booking"
	"backend-birdtours/internal/chat"
	"backend-birdtours/internal/config"
	"backend-birdtours/internal/contact"
	"backend-birdtours/internal/dashboard"
	"backend-birdtours/internal/db"
	"backend-birdtours/internal/diagnostics"
	"backend-birdtours/internal/health"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/payment"
	"backend-birdtours/internal/profile"
	"backend-birdtours/internal/ratelimit"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/stream"
	"backend-birdtours/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const authRequestsPerMinute = 20

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Store    db.Querier
	Redis    *redis.Client
	Stream   *stream.Hub
	Listener *stream.Listener
	Logger   *logrus.Logger
	Limiters []*ratelimit.Limiter
}

// NewServer wires every route. pool may be nil; store calls then fail with
// db.ErrNotConnected.
func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logrus.Logger) *Server {
	logger = logging.OrDiscard(logger)

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(recover.New())
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(corsConfig(cfg)))
	app.Use(logging.RequestLogger(logger))

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pool,
		Store:  db.PoolQuerier(pool, db.ErrNotConnected),
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, logger),
		Logger: logger,
	}
	if pool != nil {
		s.Listener = stream.NewListener(cfg.RealtimeChannel, stream.PoolAcquirer(pool), s.Stream, logger)
	}

	registerRoutes(s)
	return s
}

// errorHandler renders every failure as {"error": message}.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{"error": apperr.Normalize(err).Error()})
}

func corsConfig(cfg config.Config) cors.Config {
	origins := "*"
	if cfg.SiteURL != "" {
		origins = cfg.SiteURL
	}
	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,apikey,X-Service-Key",
	}
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authSvc := auth.NewService(s.Cfg.JWTSecret, s.Store, s.Cfg.SiteURL, s.Logger)
	bookingSvc := booking.NewService(s.Store, s.Stream, s.Logger)
	chatSvc := chat.NewService(s.Store, s.Stream, s.Logger)
	paymentSvc := payment.NewService(s.Store, s.Stream, s.Logger)
	tripSvc := trip.NewService(s.Store, s.Logger)
	profileSvc := profile.NewService(s.Store, s.Logger)

	authLimiter := ratelimit.PerMinute(authRequestsPerMinute)
	contactLimiter := ratelimit.PerMinute(s.Cfg.ContactRatePerMinute)
	s.Limiters = append(s.Limiters, authLimiter, contactLimiter)

	auth.RegisterRoutes(s.App.Group("/auth", authLimiter.Middleware(s.Logger)), authSvc)

	jwtMiddleware := auth.JWTMiddleware(authSvc)
	api := s.App.Group("/api", auth.APIKeyMiddleware(s.Cfg.AnonKey))
	trip.RegisterRoutes(api.Group("/trips"), tripSvc)
	contact.RegisterRoutes(api.Group("/contact"), contact.NewService(s.Store, s.Logger), contactLimiter.Middleware(s.Logger))
	profile.RegisterRoutes(api.Group("/profile", jwtMiddleware), profileSvc)

	bookings := api.Group("/bookings", jwtMiddleware)
	booking.RegisterRoutes(bookings, bookingSvc)
	chat.RegisterRoutes(bookings, chatSvc)
	payment.RegisterRoutes(bookings, paymentSvc)

	admin := s.App.Group("/admin", auth.ServiceKeyMiddleware(s.Cfg.ServiceRoleKey))
	trip.RegisterAdminRoutes(admin.Group("/trips"), tripSvc)
	profile.RegisterAdminRoutes(admin.Group("/profiles"), profileSvc)
	adminBookings := admin.Group("/bookings")
	booking.RegisterAdminRoutes(adminBookings, bookingSvc)
	chat.RegisterAdminRoutes(adminBookings, chatSvc)
	payment.RegisterAdminRoutes(adminBookings, paymentSvc)
	diagnostics.RegisterRoutes(admin.Group("/diagnostics"), diagnostics.NewService(s.Store, s.Logger).ForChannel(s.Cfg.RealtimeChannel))

	var analyzerOpts []health.Option
	if s.DB != nil {
		analyzerOpts = append(analyzerOpts, health.WithPoolSize(s.DB.Config().MaxConns))
	}
	health.RegisterRoutes(admin.Group("/health"), health.NewAnalyzer(s.Store, authSvc, s.Stream, s.Cfg, s.Logger, analyzerOpts...))

	stream.RegisterRoutes(s.App.Group("/realtime"), s.Stream, authSvc)
	dashboard.RegisterRoutes(s.App.Group("/dashboard"), bookingSvc, s.Stream, authSvc, s.Logger)
}
