package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/school_cbt/configs"
	"github.com/anjiri1684/school_cbt/database"
	"github.com/anjiri1684/school_cbt/handlers"
	"github.com/anjiri1684/school_cbt/jobs"
	"github.com/anjiri1684/school_cbt/logger"
	"github.com/anjiri1684/school_cbt/middleware"
	"github.com/anjiri1684/school_cbt/routes"
	"github.com/anjiri1684/school_cbt/services"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/robfig/cron/v3"
)

func main() {
	logger.Init(config.ConfigOr("LOG_LEVEL", "info"), config.ConfigOr("LOG_FORMAT", "json"))

	database.ConnectDB()
	database.Migrate()
	database.ConnectRedis()
	defer database.Close()

	var mappings services.MappingStore = services.NewGormMappingStore(database.DB)
	if database.Redis != nil {
		mappings = services.NewRedisMappingStore(database.Redis)
	}

	policy := services.NewTestTypePolicy(config.ConfigList("AGGREGATE_TEST_TYPES", "Examination"))
	registry := services.NewCodeRegistry(database.DB)
	exams := services.NewExamService(
		registry,
		services.NewDuplicateGuard(database.DB, policy),
		services.NewExamAssembler(services.NewGormQuestionStore(database.DB, nil), nil),
		mappings,
		services.ExamOptions{
			Policy:       policy,
			MappingGrace: config.ConfigDuration("MAPPING_GRACE", time.Hour),
		},
	)

	c := cron.New()
	c.AddFunc("*/15 * * * *", jobs.PurgeStaleMappings(mappings))
	c.AddFunc("*/5 * * * *", jobs.ReportStuckRedemptions(registry, config.ConfigDuration("STUCK_REDEMPTION_GRACE", 30*time.Minute)))
	c.Start()
	defer c.Stop()
	logger.Log.Info("housekeeping jobs scheduled")

	app := fiber.New(fiber.Config{
		AppName:       config.ConfigOr("APP_NAME", "School CBT"),
		JSONEncoder:   sonic.Marshal,
		JSONDecoder:   sonic.Unmarshal,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			logger.Log.WithError(err).WithField("path", c.Path()).WithField("method", c.Method()).Error("unhandled error")
			message := "Internal server error"
			if code != fiber.StatusInternalServerError {
				message = err.Error()
			}
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": message,
			})
		},
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.ConfigOr("CORS_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		MaxAge:       86400,
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	}))
	app.Use(middleware.RequestTimeout(config.ConfigDuration("REQUEST_TIMEOUT", 10*time.Second)))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	routes.ExamRoutes(app, handlers.NewExamHandler(exams), config.ConfigInt("REDEEM_RATE_LIMIT", 10))
	routes.AdminRoutes(app, handlers.NewTestCodeHandler(registry))

	go func() {
		port := config.ConfigOr("PORT", "8080")
		logger.Log.WithField("port", port).Info("server is running")
		if err := app.Listen(":" + port); err != nil {
			logger.Log.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Log.WithError(err).Warn("graceful shutdown failed")
	}
}
