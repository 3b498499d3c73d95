package routes

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	servermiddleware "github.com/ltfawg/subscribe-api/cmd/server/internal/middleware"
	"github.com/ltfawg/subscribe-api/internal/otel"
	"github.com/ltfawg/subscribe-api/internal/validator"
)

func BuildEcho(logger *slog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(middleware.AddTrailingSlash())

	e.Use(
		otelecho.Middleware(otel.ServiceName),
		slogecho.NewWithConfig(logger, slogecho.Config{
			DefaultLevel:     slog.LevelInfo,
			ClientErrorLevel: slog.LevelWarn,
			ServerErrorLevel: slog.LevelError,
		}),
		middleware.Recover(),
		servermiddleware.Received(),
		servermiddleware.ClientAddress(servermiddleware.KeyClientAddress),
	)

	e.GET("/health/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	return e, nil
}
