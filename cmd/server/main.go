package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"miyan-backend/internal/access"
	"miyan-backend/internal/admin"
	"miyan-backend/internal/apperr"
	"miyan-backend/internal/audit"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/config"
	"miyan-backend/internal/database"
	"miyan-backend/internal/inventory"
	"miyan-backend/internal/logger"
	"miyan-backend/internal/models"
	"miyan-backend/internal/staff"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

func main() {
	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("database open failed", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
	if cfg.SeedBranches {
		if err := database.SeedBranches(db, log); err != nil {
			log.Fatal("branch seed failed", zap.Error(err))
		}
	}

	shifts := staff.NewShiftService(staff.NewRepository(db), log)
	policy := access.NewPolicy(shifts)
	stockRepo := inventory.NewRepository(db, cfg.LockTimeout)
	adjustments := inventory.NewService(stockRepo, log)

	app := fiber.New(fiber.Config{
		AppName:      "miyan-backend",
		ErrorHandler: apperr.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.Middleware(log))

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-BOT-SECRET",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg))
	api.Get("/branches", admin.PublicBranchesHandler(db))
	api.Post("/telegram/link", staff.TelegramLinkHandler(db, cfg))
	api.Post("/telegram/token", staff.TelegramTokenHandler(db, cfg, shifts))

	// Authenticated
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	requireAdmin := auth.RequireRole(models.RoleAdmin)

	protected.Get("/auth/me", auth.MeHandler(db))

	// Branch administration
	adminRoutes := protected.Group("/admin", requireAdmin)
	adminRoutes.Post("/branches", admin.CreateBranchHandler(db))
	adminRoutes.Get("/branches", admin.ListBranchesHandler(db))
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler(db))
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler(db))
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler(db))
	adminRoutes.Get("/branches/:id/staff", admin.ListBranchStaffHandler(db))
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler(db))

	// Catalog: read for everyone signed in, write for admins
	inv := protected.Group("/inventory")
	inv.Get("/basic-items", inventory.ListBasicItemsHandler(db))
	inv.Get("/basic-items/:id", inventory.GetBasicItemHandler(db))
	inv.Post("/basic-items", requireAdmin, inventory.CreateBasicItemHandler(db))
	inv.Put("/basic-items/:id", requireAdmin, inventory.UpdateBasicItemHandler(db))
	inv.Delete("/basic-items/:id", requireAdmin, inventory.DeleteBasicItemHandler(db))
	inv.Get("/recipes", inventory.ListRecipesHandler(db))
	inv.Get("/recipes/:id", inventory.GetRecipeHandler(db))
	inv.Post("/recipes", requireAdmin, inventory.CreateRecipeHandler(db))
	inv.Put("/recipes/:id", requireAdmin, inventory.UpdateRecipeHandler(db))
	inv.Delete("/recipes/:id", requireAdmin, inventory.DeleteRecipeHandler(db))

	// Stock and adjustments
	inv.Get("/basic-stocks", inventory.ListBasicStocksHandler(stockRepo, policy))
	inv.Get("/recipe-stocks", inventory.ListRecipeStocksHandler(stockRepo, policy))
	inv.Post("/adjustments", inventory.CreateAdjustmentHandler(adjustments, policy))
	inv.Get("/adjustments", inventory.ListAdjustmentsHandler(adjustments, policy))

	// Staff
	protected.Get("/staff/me", staff.MeHandler(db))
	staffAdmin := protected.Group("/staff", requireAdmin)
	staffAdmin.Post("/register", staff.RegisterStaffHandler(db))
	staffAdmin.Get("", staff.ListStaffHandler(db))
	staffAdmin.Post("/refresh-telegram-token", staff.RefreshTelegramTokenHandler(db))
	staffAdmin.Get("/assignments", staff.ListAssignmentsHandler(db))
	staffAdmin.Post("/assignments", staff.UpsertAssignmentHandler(db))

	// Shifts
	protected.Get("/shifts/current", staff.CurrentShiftHandler(shifts))
	protected.Post("/shifts/start", staff.StartShiftHandler(shifts))
	protected.Post("/shifts/end", staff.EndShiftHandler(shifts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server listening", zap.String("port", cfg.HTTPPort))
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
