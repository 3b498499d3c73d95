package ratelimit

import (
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	servermiddleware "github.com/ltfawg/subscribe-api/cmd/server/internal/middleware"
	"github.com/ltfawg/subscribe-api/cmd/server/internal/response"
	"github.com/ltfawg/subscribe-api/internal/logger"
	"github.com/ltfawg/subscribe-api/internal/types"
)

// ParseTrustedProxies parses CIDR ranges of proxies allowed to report the client address.
func ParseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// limiterKey is the resolved client address when the socket peer is a trusted
// proxy, otherwise the peer address itself. Headers from anyone else are
// client controlled and would let a caller pick its own bucket.
func limiterKey(c echo.Context, trusted []*net.IPNet) string {
	peer := c.Request().RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}

	if ip := net.ParseIP(peer); ip != nil {
		for _, n := range trusted {
			if n.Contains(ip) {
				return servermiddleware.GetClientAddress(c)
			}
		}
	}
	return peer
}

// NewLimiterConfig limits requests per client. Only requests using onlyMethod
// count when it is non-nil.
func NewLimiterConfig(
	store middleware.RateLimiterStore,
	onlyMethod *string,
	trusted []*net.IPNet,
) middleware.RateLimiterConfig {
	skipper := middleware.DefaultSkipper
	if onlyMethod != nil {
		skipper = func(c echo.Context) bool {
			return c.Request().Method != *onlyMethod
		}
	}

	return middleware.RateLimiterConfig{
		Skipper: skipper,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return limiterKey(c, trusted), nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.String(http.StatusForbidden, http.StatusText(http.StatusForbidden))
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if err != nil {
				logger.Logger.Warn("rate limiter store failed closed", "error", err)
			}
			logger.Logger.Debug("rate limited", "client", identifier)
			servermiddleware.SetOutcome(c, types.KindRateLimited)
			return response.TooManyRequests(c)
		},
	}
}
