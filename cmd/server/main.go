package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/postpilot/scheduler/configs"
	"github.com/postpilot/scheduler/internal/api/handlers"
	"github.com/postpilot/scheduler/internal/api/middleware"
	job "github.com/postpilot/scheduler/internal/jobs"
	"github.com/postpilot/scheduler/internal/platform"
	"github.com/postpilot/scheduler/internal/queue"
	"github.com/postpilot/scheduler/internal/repository"
	"github.com/postpilot/scheduler/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	postItemRepo := repository.NewPostItemRepository(db)
	publishJobRepo := repository.NewPublishJobRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postingHistoryRepo := repository.NewPostingHistoryRepository(db)
	mediaUsageRepo := repository.NewMediaUsageRepository(db)

	scheduleService := service.NewScheduleService(db, cfg.Publish, postRepo, postItemRepo, publishJobRepo, socialAccountRepo, postingHistoryRepo)
	credentialService := service.NewCredentialService(*cfg)

	registry := platform.NewRegistry(platform.NewInstagramPublisher(cfg))

	queueW := queue.NewQueue(cfg.Publish, postRepo, postItemRepo, publishJobRepo, socialAccountRepo, postingHistoryRepo, mediaUsageRepo, credentialService, registry, client)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(scheduleService, client)
	api.Post("/posts/schedule", post.SchedulePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/history", post.ListHistory)
	api.Post("/posts/cancel", post.CancelPost)

	// cron jobs
	dueSweepJob := job.NewDueSweepJob(publishJobRepo, client)
	stuckRecoveryJob := job.NewStuckRecoveryJob(cfg.Publish, postRepo, postItemRepo, publishJobRepo, client)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", dueSweepJob.Run)
	c.AddFunc("@every 00h05m00s", stuckRecoveryJob.Run)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishItem, queueW.HandlePublishItemTask)
		mux.HandleFunc(queue.TaskTypeMediaUsage, queueW.HandleMediaUsageTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
