package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/handlers"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/middleware"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/services"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.LogWarn("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	gatewayToken := os.Getenv("GAME_SERVICE_TOKEN")
	if gatewayToken == "" {
		log.Fatal("❌ GAME_SERVICE_TOKEN is not set — service cannot authenticate Gateway")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "5200"
	}
	refreshInterval := time.Minute
	if v := os.Getenv("SETTINGS_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SETTINGS_REFRESH_INTERVAL %q", v)
		}
		refreshInterval = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.GamificationActor{},
		&models.CooldownRecord{},
		&models.MiningTask{},
		&models.RedemptionRequest{},
		&models.PointLedgerEntry{},
		&models.GamificationSettingsRecord{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// --- Services ---
	configStore := services.NewConfigStore(db)
	settings, err := configStore.Load(ctx)
	if err != nil {
		log.Fatal("failed to load gamification settings:", err)
	}

	ledger := services.NewPointLedger(db, configStore)
	guard := services.NewCooldownGuard()
	catalog := services.NewMiningTaskCatalog(db, ledger, guard)
	actions := services.NewActionService(db, configStore, ledger, guard)
	redemptions := services.NewRedemptionWorkflow(db, configStore, ledger)
	actors := services.NewActorService(db, configStore, ledger)

	if err := catalog.SyncFromSettings(ctx, settings); err != nil {
		log.Fatal("failed to sync mining tasks:", err)
	}
	configStore.Subscribe(func(s services.GamificationSettings) {
		syncCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := catalog.SyncFromSettings(syncCtx, s); err != nil {
			utils.LogError("❌ Mining task sync failed: %v", err)
		}
	})

	sched, err := services.StartGamificationScheduler(configStore, redemptions, refreshInterval)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	// --- Evidence storage: R2 when configured, local disk otherwise ---
	var uploader utils.EvidenceUploader
	r2, err := utils.NewR2UploaderFromEnv(ctx)
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	local := &utils.LocalUploader{Dir: "uploads", URLPrefix: "/uploads"}
	if r2 != nil {
		uploader = r2
	} else {
		if err := local.EnsureDir(); err != nil {
			log.Fatal("failed to ensure upload dir:", err)
		}
		uploader = local
		utils.LogWarn("⚠️  R2 not configured, evidence files are stored under ./uploads")
	}

	// --- HTTP ---
	app := fiber.New(fiber.Config{
		BodyLimit: utils.MaxEvidenceSize + 1024*1024,
	})

	app.Use(middleware.RequestLogger())

	// 🔐❗ GLOBAL: Only Gateway requests allowed, except probes
	app.Use(middleware.GatewayAuthMiddleware(gatewayToken, "/health", "/metrics"))

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		utils.LogWarn("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Actor-ID, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.SetupGamificationRoutes(app, &handlers.GamificationHandlers{
		Actors:      actors,
		Ledger:      ledger,
		Catalog:     catalog,
		Actions:     actions,
		Redemptions: redemptions,
		Config:      configStore,
		Uploader:    uploader,
	})

	if r2 == nil {
		app.Static("/uploads", local.Dir)
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			utils.LogError("Server error: %v", err)
		}
	}()

	utils.LogInfo("✅ Server running on http://localhost:%s", port)
	utils.LogInfo("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	utils.LogInfo("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	utils.LogInfo("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		utils.LogError("scheduler shutdown: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		utils.LogError("server shutdown: %v", err)
	}
}
