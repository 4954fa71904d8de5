package api

import (
	"io"       // Stream writer
	"net/http" // HTTP status codes
	"time"     // Keep-alive interval

	"passport_studio/internal/middleware" // Session user
	"passport_studio/internal/notify"     // Change feed

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// pingInterval keeps proxies from closing an idle stream
const pingInterval = 25 * time.Second

// EventsHandler streams change events as server-sent events. Operators get
// the admin topic, everyone else the events of their own account.
func EventsHandler(broker notify.Broker, admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		topic := notify.UserTopic(user.ID)
		if admin {
			topic = notify.AdminTopic
		}
		ctx := c.Request.Context()
		events, err := broker.Subscribe(ctx, topic)
		if err != nil {
			logrus.WithError(err).Error("Failed to subscribe to change feed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Change feed unavailable"})
			return
		}

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no") // Disable proxy buffering
		c.SSEvent("ready", gin.H{"topic": topic})
		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(ev.Type, ev)
				return true
			case <-ticker.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			case <-ctx.Done():
				return false
			}
		})
	}
}
