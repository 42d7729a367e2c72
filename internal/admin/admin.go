// Package admin exposes the broker's observability surface over HTTP:
// Prometheus metrics, a health probe, and a live SSE stream of committed
// transactions. It is read-only and optional; the bank itself speaks only
// over FIFOs and shared memory.
package admin

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adabank/internal/events"
)

// HealthSource is the server-side state the probe reports on.
type HealthSource interface {
	QueueDepth() int32
	ActiveAccounts() int
	TellerCount() int
}

// NewRouter builds the admin engine.
func NewRouter(bankName string, health HealthSource, broker *events.Broker) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", healthHandler(bankName, health))
	router.GET("/events", eventsHandler(broker))

	return router
}

func healthHandler(bankName string, health HealthSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"bank":            bankName,
			"queue_depth":     health.QueueDepth(),
			"active_accounts": health.ActiveAccounts(),
			"active_tellers":  health.TellerCount(),
		})
	}
}

// eventsHandler streams committed transactions as server-sent events until
// the subscriber disconnects.
func eventsHandler(broker *events.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := broker.Subscribe()
		defer broker.Unsubscribe(ch)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		c.Stream(func(w io.Writer) bool {
			select {
			case event, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent("transaction", event)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
