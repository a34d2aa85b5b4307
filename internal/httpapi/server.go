// Package httpapi exposes the queue to the order platform over HTTP. The
// platform posts order events; operators and probes can request a sweep,
// read an order's queue state and check health.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/orderstore"
	"nathanbeddoewebdev/payq/internal/scheduler"
)

// Queue is the part of actionqueue.Queue the API uses.
type Queue interface {
	Enqueue(ctx context.Context, orderRef string, kind actionqueue.Kind, data map[string]string) (bool, error)
	IsBroken(record actionqueue.ActionRecord) bool
	NextAttempt(orderRef string, record actionqueue.ActionRecord) time.Time
	Config() actionqueue.Config
}

// Orders reads orders for the API.
type Orders interface {
	GetOrder(ctx context.Context, ref string) (*orderstore.Order, error)
}

// Scheduler receives processing requests.
type Scheduler interface {
	Trigger(orderRef string) bool
	SweepNow() bool
	Status() scheduler.Status
}

// Server routes API requests.
type Server struct {
	queue  Queue
	orders Orders
	sched  Scheduler
	logger *log.Logger
	router *gin.Engine
}

// NewServer creates the API server. A nil logger means log.Default().
func NewServer(queue Queue, orders Orders, sched Scheduler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		queue:  queue,
		orders: orders,
		sched:  sched,
		logger: logger,
		router: router,
	}

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.POST("/orders/:ref/events", s.handleEvent)
		v1.GET("/orders/:ref", s.handleGetOrder)
		v1.POST("/sweep", s.handleSweep)
	}

	return s
}

// Handler returns the HTTP handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Printf("httpapi: %s %s status=%d duration=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}
