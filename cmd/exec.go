package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"event-hub/config"
	"event-hub/handlers"
	_ "event-hub/migrations"
	"event-hub/monitoring"
	"event-hub/security"
	"event-hub/services"
	"event-hub/utils"
)

func Start() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	app := pocketbase.New()
	cfg := config.LoadConfig()

	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pnConfig.UUID = cfg.PubNubUUID
	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventService := services.NewEventService(app)
	attendanceService := services.NewAttendanceService(app, redisClient, eventService, cfg.JoinLockTTL)
	realtimeService := services.NewRealtimeService(pn)
	uploadService := services.NewUploadService(cfg)

	monitor := monitoring.NewMonitor(redisClient, cfg.MetricsInterval)
	limiter := security.NewRateLimiter(redisClient)

	eventHandler := handlers.NewEventHandler(app, eventService)
	attendHandler := handlers.NewAttendHandler(app, attendanceService, realtimeService, monitor)
	uploadHandler := handlers.NewUploadHandler(app, uploadService, monitor)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	if cfg.PubNubSubscribeKey != "" {
		listener := services.NewRealtimeListener(cfg, eventService, realtimeService)
		go listener.Run(ctx)
	}

	if cfg.EnableMetrics {
		go func() {
			if err := monitoring.Serve(cfg.MetricsPort); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if err := syncEventCountersToRedis(app, redisClient); err != nil {
			slog.Error("failed to sync event counters", "error", err)
		}

		e.Router.GET("/api/events", eventHandler.List)
		e.Router.GET("/api/events/{id}", eventHandler.Get)

		e.Router.POST("/api/events", eventHandler.Create).
			BindFunc(limiter.Limit("create", cfg.RateLimitMax, cfg.RateLimitWindow))

		e.Router.POST("/api/events/{id}/attend", attendHandler.Attend).
			BindFunc(limiter.AntiBot()).
			BindFunc(limiter.Limit("attend", cfg.RateLimitMax, cfg.RateLimitWindow))

		e.Router.POST("/api/events/upload", uploadHandler.Upload).
			BindFunc(limiter.Limit("upload", cfg.RateLimitMax, cfg.RateLimitWindow))

		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "ok"})
		})

		log.Println("Server routes registered")
		return e.Next()
	})

	setupEventHooks(app, redisClient)

	return app.Start()
}

// syncEventCountersToRedis rebuilds the event index and per-event attendee
// counters from the database on startup so metrics survive restarts.
func syncEventCountersToRedis(app core.App, redisClient *redis.Client) error {
	var rows []dbx.NullStringMap
	err := app.DB().
		NewQuery("SELECT id, json_array_length(attendees) AS attendee_count FROM events").
		All(&rows)
	if err != nil {
		return err
	}

	ctx := context.Background()
	redisClient.Del(ctx, "events:index")

	for _, row := range rows {
		id := row["id"].String
		redisClient.SAdd(ctx, "events:index", id)
		redisClient.Set(ctx, "event:attendees:"+id, row["attendee_count"].String, 0)
	}

	log.Printf("Synced %d events to Redis", len(rows))
	return nil
}

func setupEventHooks(app core.App, redisClient *redis.Client) {
	app.OnRecordAfterCreateSuccess("events").BindFunc(func(e *core.RecordEvent) error {
		ctx := context.Background()
		if err := redisClient.SAdd(ctx, "events:index", e.Record.Id).Err(); err != nil {
			slog.Error("failed to index event", "event_id", e.Record.Id, "error", err)
		}
		count := len(e.Record.GetStringSlice("attendees"))
		if err := redisClient.Set(ctx, "event:attendees:"+e.Record.Id, count, 0).Err(); err != nil {
			slog.Error("failed to cache attendee count", "event_id", e.Record.Id, "error", err)
		}
		return e.Next()
	})

	app.OnRecordAfterDeleteSuccess("events").BindFunc(func(e *core.RecordEvent) error {
		ctx := context.Background()
		redisClient.SRem(ctx, "events:index", e.Record.Id)
		redisClient.Del(ctx, "event:attendees:"+e.Record.Id)
		return e.Next()
	})
}

func handleShutdown(cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")
	cancel()
}
