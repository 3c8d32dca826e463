package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	authgate "github.com/clinvia/go-authgate"
	"github.com/clinvia/go-authgate/gateway"
	"github.com/clinvia/go-authgate/identity"
	"github.com/clinvia/go-authgate/metrics"
	"github.com/clinvia/go-authgate/relay"
)

func main() {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(slogger)
	logger := authgate.NewSlogLogger(slogger)

	cfg, err := authgate.LoadConfigFromEnv()
	if err != nil {
		slogger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()

	httpClient := &http.Client{Timeout: cfg.GetRequestTimeout()}

	client := identity.New(cfg,
		identity.WithHTTPClient(httpClient),
		identity.WithLogger(logger),
	)

	notifier := relay.New(cfg.GetWebhookURL(),
		relay.WithLogger(logger),
		relay.WithRecorder(collector),
	)

	app := fiber.New(fiber.Config{
		AppName:               "authgate",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	limiter := gateway.NewSignInLimiter(cfg.SignInPerMinute, collector.RecordSignInThrottled)

	gateway.RegisterGatewayRoutes(app,
		gateway.WithService(client),
		gateway.WithLogger(logger),
		gateway.WithNotifier(notifier),
		gateway.WithMetrics(collector),
		gateway.WithSignInLimiter(limiter.Handler()),
		gateway.WithDebug(os.Getenv("AUTHGATE_DEBUG") == "true"),
	)

	go func() {
		addr := ":" + cfg.ServerPort
		slogger.Info("authgate listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			slogger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slogger.Error("shutdown error", "error", err)
	}
	// Let in-flight webhook deliveries finish before the process exits.
	notifier.Wait()
}

func logLevel() slog.Level {
	if os.Getenv("AUTHGATE_DEBUG") == "true" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
