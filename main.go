package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"event-checkin-system/handlers"
	"event-checkin-system/middleware"
	"event-checkin-system/models"
	"event-checkin-system/services"
	"event-checkin-system/utils"
	"event-checkin-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 15 * 1024 * 1024, // proof images, nothing bigger
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Role",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitProofStorage(); err != nil {
		log.Fatal("failed to initialize proof storage client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.EventParticipation{},
		&models.Reward{},
		&models.UserReward{},
		&models.RewardLeaderboardConfig{},
		&models.RewardLeaderboardEntry{},
		&models.Notification{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := utils.LoadReferenceClock()

	codeGenerator := services.NewCodeGenerator(db)
	notificationService := services.NewNotificationService(db)
	participationService := services.NewParticipationService(db, clock, codeGenerator, notificationService)
	rewardService := services.NewRewardService(db, clock, notificationService)
	leaderboardService := services.NewLeaderboardService(db, clock)

	// Completions feed the leaderboard tally and the monthly reward check.
	// Both run after the transition has committed; failures are logged only.
	participationService.OnCompletion = func(p *models.EventParticipation) {
		if _, err := leaderboardService.RecordCompletion(p.UserID, p.EventID); err != nil {
			log.Printf("❌ Failed to record leaderboard completion for user %s: %v", p.UserID, err)
		}
		if _, err := rewardService.CheckAndAwardRewards(p.UserID); err != nil {
			log.Printf("❌ Failed to evaluate monthly rewards for user %s: %v", p.UserID, err)
		}
	}

	scheduler := services.NewSchedulerService(db, clock, participationService, leaderboardService, notificationService, codeGenerator)
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer scheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollOverdueLeaderboards(ctx, leaderboardService, 15*time.Minute)

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupParticipationRoutes(app, participationService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)
	handlers.SetupInboxRoutes(app, notificationService, rewardService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Daily rotation scheduler running")
	log.Println("✅ Overdue leaderboard polling running (every 15m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
