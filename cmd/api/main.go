package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/livecast-io/livecast-api/internal/config"
	"github.com/livecast-io/livecast-api/internal/database"
	"github.com/livecast-io/livecast-api/internal/handler"
	"github.com/livecast-io/livecast-api/internal/middleware"
	"github.com/livecast-io/livecast-api/internal/models"
	"github.com/livecast-io/livecast-api/internal/repository"
	"github.com/livecast-io/livecast-api/internal/router"
	"github.com/livecast-io/livecast-api/internal/service"
	cloud "github.com/livecast-io/livecast-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.UserProfile{},
		&models.Gift{},
		&models.GiftInventoryItem{},
		&models.GiftTransaction{},
		&models.GiftBonusLog{},
		&models.CoinTransaction{},
		&models.RoomMessage{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	} else {
		logger.Warn().Msg("nats url not configured, running with redis transport only")
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	} else {
		logger.Warn().Msg("cloudinary not configured, artwork uploads disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	profileRepo := repository.NewProfileRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	catalogRepo := repository.NewGiftCatalogRepository(db)
	giftTxRepo := repository.NewGiftTransactionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	ledgerService := service.NewLedgerService(profileRepo, ledgerRepo, logger)
	roomService := service.NewRoomService(messageRepo, redisClient, cfg.PubSubChannelBase, natsConn, validate, service.RoomTuning{
		TimelineCap:   cfg.RoomTimelineCap,
		FlushInterval: cfg.RoomFlushInterval,
		StackWindow:   cfg.RoomStackWindow,
		ChatCooldown:  cfg.ChatCooldown,
	}, logger)
	giftService := service.NewGiftService(catalogRepo, inventoryRepo, profileRepo, giftTxRepo, ledgerService, roomService, validate, logger)
	catalogService := service.NewCatalogService(catalogRepo, redisClient, cfg.PubSubChannelBase, cfg.CatalogCacheTTL, uploader, validate, logger)

	roomHandler := handler.NewRoomHandler(roomService, validate, logger)
	giftHandler := handler.NewGiftHandler(giftService, catalogService, validate, logger)
	walletHandler := handler.NewWalletHandler(ledgerService, validate, logger)
	adminGiftHandler := handler.NewAdminGiftHandler(catalogService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RoomHandler:      roomHandler,
		GiftHandler:      giftHandler,
		WalletHandler:    walletHandler,
		AdminGiftHandler: adminGiftHandler,
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	consumeCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	roomService.Start(consumeCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopConsumers)
}

func waitForShutdown(app *fiber.App, stopConsumers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	stopConsumers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
