package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"xandpulse/config"
	"xandpulse/handlers"
	"xandpulse/middleware"
	"xandpulse/services"
	"xandpulse/utils"
)

// stores bundles the persistence ports; Mongo when reachable, memory otherwise.
type stores struct {
	snapshots     services.SnapshotStore
	activity      services.ActivityStore
	subscriptions services.SubscriptionStore
	feed          services.AlertFeedStore
}

func main() {
	// 1. Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	utils.SetupLogging(cfg.Logging.Level, cfg.Logging.Format)

	log.Println("=== Configuration ===")
	log.Printf("Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Seeds: %v", cfg.PRPC.SeedNodes)
	log.Printf("Redis: %s (enabled=%t)", cfg.Redis.Address, cfg.Redis.Enabled)
	log.Printf("MongoDB: %s (enabled=%t)", cfg.MongoDB.Database, cfg.MongoDB.Enabled)

	// 2. Persistence
	memory := services.NewMemoryStore()
	st := stores{snapshots: memory, activity: memory, subscriptions: memory, feed: memory}

	mongoService, err := services.NewMongoDBService(cfg)
	if err != nil {
		log.Warnf("⚠️  MongoDB connection failed: %v", err)
		log.Println("Snapshots, subscriptions and alerts will be kept in memory")
	} else if mongoService.Enabled() {
		defer mongoService.Close()
		st = stores{snapshots: mongoService, activity: mongoService, subscriptions: mongoService, feed: mongoService}
	}

	cache := services.NewCacheService(cfg)

	// 3. Core services
	geo := utils.NewGeoResolver(cfg.GeoIP.DBPath)
	defer geo.Close()

	metrics := services.NewMetrics()
	prpc := services.NewPRPCClient(cfg)
	collector := services.NewCollector(cfg, prpc, geo)
	creditsService := services.NewCreditsService(cfg.Credits.Endpoint, cfg.CreditsFetchIntervalDuration())

	discordBot, err := services.NewDiscordBotService(cfg.Discord.Token, cfg.Discord.ChannelID)
	if err != nil {
		log.Warnf("⚠️  Discord bot initialization failed: %v", err)
		log.Println("Discord notifications will be disabled")
		discordBot = nil
	} else {
		defer discordBot.Close()
	}

	alertCfg := services.AlertServiceConfig{
		Records:       st.snapshots,
		Subscriptions: st.subscriptions,
		Cooldown:      cache,
		Feed:          st.feed,
		Discord:       discordBot,
		Metrics:       metrics,
		Concurrency:   cfg.Alerts.Concurrency,
	}
	if email := services.NewEmailService(cfg.Email.APIURL, cfg.Email.APIKey, cfg.Email.From); email.Enabled() {
		alertCfg.Email = email
	}
	if push := services.NewPushService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber, cfg.Push.TTL); push.Enabled() {
		alertCfg.Push = push
	}

	activityService := services.NewActivityService(st.snapshots, st.activity, discordBot, metrics)
	alertService := services.NewAlertService(alertCfg)
	subscriptionService := services.NewSubscriptionService(st.subscriptions)

	poller := services.NewPoller(services.PollerConfig{
		Source:   collector,
		Credits:  creditsService,
		Cache:    cache,
		Activity: activityService,
		Alerts:   alertService,
		Records:  st.snapshots,
		Metrics:  metrics,
		BaseURL:  cfg.Alerts.BaseURL,
		Interval: cfg.CycleIntervalDuration(),
	})

	discordBot.SetStatusProvider(func() string {
		stats, stale, found := cache.GetNetworkStats(true)
		if !found {
			return "No network data yet"
		}
		text := fmt.Sprintf("%d nodes (%d online, %d offline), health %.1f%%",
			stats.TotalNodes, stats.OnlineNodes, stats.OfflineNodes, stats.NetworkHealth)
		if stale {
			text += " (stale)"
		}
		return text
	})

	// 4. Web server
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.LoggerMiddleware())
	e.Use(middleware.RecoverMiddleware())
	e.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	core := handlers.NewHandler(cache, services.NewBenchmarkService(), prpc, cfg.PRPC.DefaultPort)
	if mongoService.Enabled() {
		core.Database = mongoService
	}

	handlers.RegisterRoutes(e, handlers.Routes{
		Core:          core,
		Credits:       handlers.NewCreditsHandlers(creditsService),
		Activity:      handlers.NewActivityHandlers(activityService),
		Subscriptions: handlers.NewSubscriptionHandlers(subscriptionService),
		Alerts:        handlers.NewAlertHandlers(alertService, poller, cfg.Alerts.CronSecret),
		Cache:         handlers.NewCacheHandlers(cache),
		Metrics:       metrics.Handler(),
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Printf("🚀 Server running on http://%s", serverAddr)
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("shutting down the server: %v", err)
		}
	}()

	// 5. Background services
	log.Println("=== Starting Services ===")

	cache.Start()
	log.Printf("✓ Cache Service started (mode: %s)", cache.GetCacheMode())

	creditsService.Start()
	log.Println("✓ Credits Service started")

	if cfg.Polling.Enabled {
		poller.Start()
		log.Println("✓ Poller started")
	} else {
		log.Println("Polling disabled; cycles run only via POST /api/alerts/process")
	}

	log.Println("=== All Services Running ===")
	if discordBot.Enabled() {
		if err := discordBot.SendMessage("✅ XandPulse backend is up"); err != nil {
			log.Warnf("⚠️  Discord startup message failed: %v", err)
		}
	}

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Graceful shutdown initiated...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Stopping services...")
	if cfg.Polling.Enabled {
		poller.Stop()
	}
	creditsService.Stop()
	cache.Stop()
	log.Println("✓ All services stopped")

	if err := e.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}
	log.Println("✓ Server exited cleanly")
}
