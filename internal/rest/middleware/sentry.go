package middleware

import (
	"time"

	"github.com/flexprice/autobill/internal/config"
	"github.com/flexprice/autobill/internal/types"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// SentryMiddleware attaches a hub to every request and tags it with the
// request id. It is a no-op chain when sentry is disabled.
func SentryMiddleware(cfg *config.Configuration) gin.HandlersChain {
	if !cfg.Sentry.Enabled {
		return nil
	}

	return gin.HandlersChain{
		sentrygin.New(sentrygin.Options{
			Repanic: true,
			Timeout: 2 * time.Second,
		}),
		func(c *gin.Context) {
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				hub.Scope().SetTag("request_id", types.GetRequestID(c.Request.Context()))
			}
			c.Next()
		},
	}
}
