package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ltfawg/subscribe-api/cmd/server/internal/ratelimit"
	"github.com/ltfawg/subscribe-api/cmd/server/internal/routes"
	"github.com/ltfawg/subscribe-api/cmd/server/internal/routes/subscribe"
	"github.com/ltfawg/subscribe-api/internal/config"
	"github.com/ltfawg/subscribe-api/internal/hcaptcha"
	"github.com/ltfawg/subscribe-api/internal/logger"
	"github.com/ltfawg/subscribe-api/internal/otel"
	"github.com/ltfawg/subscribe-api/internal/sendy"
)

const name string = "github.com/ltfawg/subscribe-api/server"

var tracer = otellib.Tracer(name)

type server struct {
	router       *echo.Echo
	config       *config.Config
	redis        *redis.Client
	otelShutdown func(context.Context) error
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server config: %w", err)
	}
	server.config = cfg

	shutdownOTel, err := otel.SetupOTelSDK(ctx, cfg.Logging.UseOTLP)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// Something failed to initialize, make sure everything gets flushed to the server
		if server.otelShutdown == nil {
			otelShutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				time.Second*time.Duration(cfg.GracefulShutdownSecs),
			)
			defer cancel()

			if err = shutdownOTel(otelShutdownCtx); err != nil {
				logger.Logger.Error("failed to flush otel data", "error", err)
			}
		}
	}()

	ctx, span := tracer.Start(ctx, "initServer")
	defer span.End()

	logger.LogLevel.Set(slog.Level(cfg.Logging.App.Level))

	subscriber := sendy.NewHTTPSubscriber(sendy.Options{
		Endpoint:     cfg.SubscribeURL(),
		ListID:       cfg.Sendy.ListID,
		APIKey:       cfg.Sendy.APIKey,
		UserAgent:    cfg.Sendy.UserAgent,
		Timeout:      cfg.Sendy.Timeout,
		MaxRedirects: cfg.Sendy.MaxRedirects,
	})

	span.AddEvent("initialized mailing list client")

	var verifier hcaptcha.Verifier
	if cfg.HCaptcha.Verify {
		verifier = hcaptcha.NewClient(cfg.HCaptcha.VerifyURL, cfg.HCaptcha.Secret, cfg.HCaptcha.RetryMax)
		span.AddEvent("initialized captcha verifier")
	} else {
		logger.Logger.Warn("captcha tokens are forwarded without local verification")
	}

	subscribeHandler, err := subscribe.NewHandler(cfg, subscriber, verifier)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create subscribe handler")
		return nil, fmt.Errorf("failed to create subscribe handler: %w", err)
	}

	var limiters []echo.MiddlewareFunc
	if cfg.RateLimit != nil && cfg.RateLimit.PerMinute > 0 {
		trusted, err := ratelimit.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid trusted proxies")
			return nil, err
		}

		backoff := retry.WithMaxRetries(5, retry.NewFibonacci(100*time.Millisecond))
		server.redis, err = ratelimit.Connect(ctx, cfg.RateLimit.RedisHost, backoff)
		if err != nil && !cfg.RateLimit.FailOpen {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to connect to redis")
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		if err != nil {
			logger.Logger.Warn("redis unreachable, signup rate limit disabled", "error", err)
		} else {
			post := http.MethodPost
			store := ratelimit.NewRedisLimitStore(ratelimit.RedisLimiterConfig{
				RedisClient: server.redis,
				LimiterKey:  "subscribe",
				PerMinute:   cfg.RateLimit.PerMinute,
				FailOpen:    cfg.RateLimit.FailOpen,
			})
			limiters = append(
				limiters,
				middleware.RateLimiterWithConfig(ratelimit.NewLimiterConfig(store, &post, trusted)),
			)
			span.AddEvent("initialized rate limiter")
		}
	} else {
		logger.Logger.Warn("not configured to have a signup rate limit")
	}

	e, err := routes.BuildEcho(logger.Logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}

	span.AddEvent("created echo router")

	subscribeHandler.AddRoutes(e, limiters...)

	server.otelShutdown = shutdownOTel
	server.router = e

	return server, nil
}

func (s *server) Start() error {
	logger.Logger.Info("Starting services...", "address", s.config.ListenAddress)

	err := s.router.Start(s.config.ListenAddress)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *server) Shutdown() error {
	var errs error

	ctx, cancelTimeout := context.WithTimeout(
		context.Background(),
		time.Second*time.Duration(s.config.GracefulShutdownSecs),
	)
	defer cancelTimeout()

	if err := s.router.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	if s.otelShutdown != nil {
		errs = errors.Join(errs, s.otelShutdown(ctx))
	}

	return errs
}

func main() {
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer cancelSignal()

	logger.InitSlog(slog.LevelDebug)

	server, err := initServer(ctx)
	if err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		logger.Logger.Info("Got shutdown signal!")
		return server.Shutdown()
	})
	g.Go(func() error {
		if err := server.Start(); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Logger.Error("Error running server", "error", err)
		cancelSignal()
		os.Exit(1)
	}
}
