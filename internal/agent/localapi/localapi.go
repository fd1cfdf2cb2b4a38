// Package localapi is the agent's loopback HTTP surface: kiosk
// frontends post scans here, and operators inspect or resolve the local
// queue. It never talks to the network beyond localhost.
package localapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ottimo/presence/internal/agent/capture"
	"github.com/ottimo/presence/internal/agent/queue"
	"github.com/ottimo/presence/internal/agent/reconciler"
	"github.com/ottimo/presence/internal/clock"
	"github.com/ottimo/presence/internal/config"
	"github.com/ottimo/presence/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type API struct {
	engine     *gin.Engine
	store      queue.Store
	reconciler *reconciler.Reconciler
	clock      clock.Clock
	metrics    *metrics.Metrics
	log        *zap.Logger
	drift      time.Duration
}

type Params struct {
	fx.In

	Cfg        config.Config
	Store      queue.Store
	Reconciler *reconciler.Reconciler
	Clock      clock.Clock
	Metrics    *metrics.Metrics `optional:"true"`
	Log        *zap.Logger
}

func New(p Params) *API {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := &API{
		engine:     r,
		store:      p.Store,
		reconciler: p.Reconciler,
		clock:      p.Clock,
		metrics:    p.Metrics,
		log:        p.Log.Named("agent.localapi"),
		drift:      p.Cfg.Agent.DriftTolerance,
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/v1/scans", api.captureScan)
	r.GET("/v1/queue", api.listQueue)
	r.GET("/v1/queue/resolvable", api.listResolvable)
	r.POST("/v1/queue/:event_id/resolve", api.resolveEvent)
	r.POST("/v1/sync", api.triggerSync)

	return api
}

type scanRequest struct {
	SubjectID string          `json:"subject_id"`
	Payload   json.RawMessage `json:"payload"`
	Location  *queue.Location `json:"location,omitempty"`
}

func (a *API) captureScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "malformed_request"})
		return
	}

	event, err := capture.Validate(req.Payload, req.SubjectID, req.Location, a.clock.Now(), capture.Options{
		DriftTolerance: a.drift,
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"reason": err.Error()})
		return
	}

	if err := a.store.Enqueue(c.Request.Context(), event); err != nil {
		a.log.Error("enqueue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"reason": "storage_error"})
		return
	}
	a.metrics.AddQueueDepth(c.Request.Context(), 1)

	// The event is durable; delivery happens in the background.
	a.reconciler.Kick()
	c.JSON(http.StatusAccepted, gin.H{"event_id": event.EventID, "status": event.Status})
}

func (a *API) listQueue(c *gin.Context) {
	events, err := a.store.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": "storage_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (a *API) listResolvable(c *gin.Context) {
	events, err := a.store.ListResolvable(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": "storage_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (a *API) resolveEvent(c *gin.Context) {
	if err := a.store.Delete(c.Request.Context(), c.Param("event_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": "storage_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) triggerSync(c *gin.Context) {
	a.reconciler.Kick()
	c.JSON(http.StatusAccepted, gin.H{"status": "sync_requested"})
}

var Module = fx.Module("agent.localapi",
	fx.Provide(New),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, api *API, log *zap.Logger) {
	srv := &http.Server{
		Addr:    "127.0.0.1:7070",
		Handler: api.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("agent local api starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
