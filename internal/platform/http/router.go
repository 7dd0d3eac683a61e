package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/weiwei-tsao/form-relay/apps/api/internal/business/relay"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/logging"
	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
)

// Submitter runs one submission through the relay pipeline.
type Submitter interface {
	Handle(ctx context.Context, req model.SubmissionRequest) (relay.Result, error)
}

// StatsReader exposes the aggregate outcome counters.
type StatsReader interface {
	GetOutcomeStats(ctx context.Context) (model.OutcomeStats, error)
}

// Options configures the router.
type Options struct {
	// Stats is optional; /api/stats answers 404 without it.
	Stats             StatsReader
	AllowedOrigins    []string
	ExposeDiagnostics bool
	Logger            *zap.Logger
}

// Router wires HTTP handlers.
type Router struct {
	submitter   Submitter
	stats       StatsReader
	parsers     *ParserRegistry
	origins     []string
	diagnostics bool
	logger      *zap.Logger
}

func NewRouter(submitter Submitter, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		submitter:   submitter,
		stats:       opts.Stats,
		parsers:     NewParserRegistry(),
		origins:     opts.AllowedOrigins,
		diagnostics: opts.ExposeDiagnostics,
		logger:      logger,
	}

	router := gin.New()
	router.Use(requestID(), accessLog(logger), recovery(logger), r.corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/submit", r.submit)
		api.OPTIONS("/submit", r.preflight)
		api.GET("/stats", r.getStats)
	}

	return router
}

// preflight is normally answered by the CORS middleware; kept so the route exists.
func (r *Router) preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (r *Router) submit(c *gin.Context) {
	req, err := r.parsers.Parse(c)
	if err != nil {
		msg := "Invalid request body"
		if errors.Is(err, ErrUnsupportedContentType) {
			msg = "Unsupported content type"
		}
		logging.FromContext(c.Request.Context(), r.logger).Info("reject body", zap.Error(err))
		r.fail(c, relay.ValidationError(msg))
		return
	}
	req.RemoteIP = c.ClientIP()

	res, err := r.submitter.Handle(c.Request.Context(), req)
	if err != nil {
		r.fail(c, relay.AsError(err))
		return
	}

	body := gin.H{"success": true, "email": res.Email}
	if r.diagnostics {
		body["diagnostics"] = res.Verdict
	}
	c.JSON(http.StatusOK, body)
}

func (r *Router) fail(c *gin.Context, e *relay.Error) {
	if e.Kind == relay.KindUnexpected {
		logging.FromContext(c.Request.Context(), r.logger).Error("submission failed unexpectedly", zap.Error(e))
	}
	body := gin.H{"success": false, "error": e.Message}
	if e.Kind == relay.KindVerification && len(e.Details) > 0 {
		body["details"] = e.Details
	}
	if r.diagnostics && e.Verdict != nil {
		body["diagnostics"] = e.Verdict
	}
	c.JSON(e.Kind.HTTPStatus(), body)
}

func (r *Router) getStats(c *gin.Context) {
	if r.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats are not enabled"})
		return
	}
	stats, err := r.stats.GetOutcomeStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
