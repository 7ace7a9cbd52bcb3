// Package api is the HTTP surface used by the Telegram mini app.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/service"
)

// SubscriptionChecker gates ride offers on chat membership.
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, userID int64) (bool, error)
}

// RidesCache holds the active rides listing. GetActive returns nil on a miss.
type RidesCache interface {
	GetActive(ctx context.Context) ([]*models.Ride, error)
	SetActive(ctx context.Context, rides []*models.Ride) error
	Invalidate(ctx context.Context) error
}

type Handler struct {
	svc     service.IServiceManager
	checker SubscriptionChecker
	cache   RidesCache
	log     logger.ILogger
}

// NewRouter wires the API routes. cache may be nil. Routes are served both at
// the root and under /api. staticDir, when set, is served at /web.
func NewRouter(svc service.IServiceManager, checker SubscriptionChecker, cache RidesCache, staticDir string, log logger.ILogger) *gin.Engine {
	h := &Handler{svc: svc, checker: checker, cache: cache, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors)

	if staticDir != "" {
		r.Static("/web", staticDir)
	}

	h.register(&r.RouterGroup)
	h.register(r.Group("/api"))
	return r
}

func (h *Handler) register(router *gin.RouterGroup) {
	router.GET("/rides", h.listRides)
	router.POST("/offer", h.createOffer)
}

func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// Run serves handler on addr until ctx is cancelled, then shuts down.
func Run(ctx context.Context, addr string, handler http.Handler, log logger.ILogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("🌐 HTTP API listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
