package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"honeypot/internal/auth"
	"honeypot/internal/logging"
	"honeypot/internal/models"
	"honeypot/internal/service/honeypot"
	"honeypot/internal/store"
	"honeypot/internal/worker"
)

const defaultTurnTimeout = 30 * time.Second

// Engine is the honeypot pipeline as seen by the transport.
type Engine interface {
	Handle(ctx context.Context, env models.Envelope) (*models.Response, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	RedriveCallback(ctx context.Context, id string) error
}

// Handler wires HTTP routes to the engagement engine.
type Handler struct {
	engine      Engine
	auth        *auth.Service
	logger      *zap.Logger
	turnTimeout time.Duration
	now         func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(engine Engine, authService *auth.Service, logger *zap.Logger, turnTimeout time.Duration) *Handler {
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}
	return &Handler{
		engine:      engine,
		auth:        authService,
		logger:      logging.OrNop(logger),
		turnTimeout: turnTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewRouter builds the gin engine with request logging and panic recovery.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(h.logger), Recovery(h.logger))
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.health)

	api := router.Group("/api")
	api.Use(h.auth.Middleware(h.logger))
	api.POST("/honeypot", h.handleMessage)
	api.GET("/sessions/:id", h.getSession)
	api.POST("/sessions/:id/callback", h.redriveCallback)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "honeypot", "endpoint": "/api/honeypot"})
}

func (h *Handler) handleMessage(c *gin.Context) {
	var req honeypotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	env, err := req.envelope(h.now())
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.turnTimeout)
	defer cancel()
	resp, err := h.engine.Handle(ctx, env)
	if err != nil {
		h.engineError(c, env.SessionID, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getSession(c *gin.Context) {
	id := c.Param("id")
	s, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		h.engineError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) redriveCallback(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RedriveCallback(c.Request.Context(), id); err != nil {
		h.engineError(c, id, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "sessionId": id})
}

// engineError maps engine failures to status codes. Store failures are retryable.
func (h *Handler) engineError(c *gin.Context, sessionID string, err error) {
	var storeErr *store.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.fail(c, http.StatusNotFound, "session not found")
	case errors.Is(err, models.ErrNotComplete):
		h.fail(c, http.StatusConflict, "session is still active")
	case errors.Is(err, models.ErrAlreadyDelivered):
		h.fail(c, http.StatusConflict, "callback already delivered")
	case errors.Is(err, honeypot.ErrCallbackInFlight):
		h.fail(c, http.StatusConflict, "callback delivery in progress")
	case errors.Is(err, worker.ErrDispatcherBusy):
		h.fail(c, http.StatusTooManyRequests, "server is busy, please retry")
	case errors.As(err, &storeErr):
		h.logger.Error("session store failure", zap.String("session_id", sessionID), zap.Error(err))
		h.fail(c, http.StatusServiceUnavailable, "session store unavailable, please retry")
	case errors.Is(err, worker.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("turn not processed", zap.String("session_id", sessionID), zap.Error(err))
		h.fail(c, http.StatusServiceUnavailable, "service unavailable, please retry")
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads the body
		c.Status(499)
	default:
		h.logger.Error("turn failed", zap.String("session_id", sessionID), zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message})
}
