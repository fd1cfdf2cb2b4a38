package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/ottimo/presence/internal/attendance"
	attdomain "github.com/ottimo/presence/internal/attendance/domain"
	"github.com/ottimo/presence/internal/config"
	"github.com/ottimo/presence/internal/observability"
	obsmiddleware "github.com/ottimo/presence/internal/observability/logger"
	obsmetrics "github.com/ottimo/presence/internal/observability/metrics"
	obstracing "github.com/ottimo/presence/internal/observability/tracing"
	"github.com/ottimo/presence/internal/organization"
	organizationdomain "github.com/ottimo/presence/internal/organization/domain"
	"github.com/ottimo/presence/internal/ratelimit"
	"github.com/ottimo/presence/internal/subject"
	subjectdomain "github.com/ottimo/presence/internal/subject/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	organization.Module,
	subject.Module,
	attendance.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	genID           *snowflake.Node
	organizationSvc organizationdomain.Service
	subjectSvc      subjectdomain.Service
	attendanceSvc   attdomain.Service
	ingestLimiter   *ratelimit.IngestLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	GenID           *snowflake.Node
	OrganizationSvc organizationdomain.Service
	SubjectSvc      subjectdomain.Service
	AttendanceSvc   attdomain.Service
	IngestLimiter   *ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		genID:           p.GenID,
		organizationSvc: p.OrganizationSvc,
		subjectSvc:      p.SubjectSvc,
		attendanceSvc:   p.AttendanceSvc,
		ingestLimiter:   p.IngestLimiter,
	}

	svc.registerOrganizationRoutes()
	svc.registerSubjectRoutes()
	svc.registerAttendanceRoutes()

	return svc
}
