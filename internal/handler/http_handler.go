package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-service/internal/service"
	"github.com/weiawesome/wes-io-live/live-service/internal/store"
	"github.com/weiawesome/wes-io-live/live-service/pkg/log"
	"github.com/weiawesome/wes-io-live/live-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/live-service/pkg/response"
)

// DefaultSTUN is served when no STUN server is configured.
const DefaultSTUN = "stun:stun.l.google.com:19302"

// TerminateRequest is the body of POST /api/v1/live/terminate.
type TerminateRequest struct {
	Reason string `json:"reason"`
}

// Handler serves the REST surface and mounts the WebSocket endpoint.
type Handler struct {
	service        service.LiveService
	store          store.SessionStore
	ws             *WSHandler
	authMiddleware *middleware.AuthMiddleware
	adminRole      string
	iceServers     []webrtc.ICEServer
	serving        atomic.Bool

	reports         ReportIndex
	reportURLExpiry time.Duration
}

// NewHandler creates a new HTTP handler. store and authMiddleware may be
// nil; without authMiddleware the admin routes are not registered.
func NewHandler(
	svc service.LiveService,
	sessionStore store.SessionStore,
	ws *WSHandler,
	authMiddleware *middleware.AuthMiddleware,
	adminRole string,
	iceServers []webrtc.ICEServer,
) *Handler {
	h := &Handler{
		service:        svc,
		store:          sessionStore,
		ws:             ws,
		authMiddleware: authMiddleware,
		adminRole:      adminRole,
		iceServers:     withSTUNFallback(iceServers),
	}
	h.serving.Store(true)
	return h
}

func withSTUNFallback(servers []webrtc.ICEServer) []webrtc.ICEServer {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "stun:") || strings.HasPrefix(u, "stuns:") {
				return servers
			}
		}
	}
	return append([]webrtc.ICEServer{{URLs: []string{DefaultSTUN}}}, servers...)
}

// SetServing controls what /health reports.
func (h *Handler) SetServing(serving bool) {
	h.serving.Store(serving)
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/ice-servers", h.ICEServers)
	if h.ws != nil {
		r.GET("/ws", gin.WrapF(h.ws.HandleWebSocket))
	}

	live := r.Group("/api/v1/live")
	{
		live.GET("/session", h.GetSession)

		if h.authMiddleware != nil {
			admin := live.Group("", h.authMiddleware.RequireAuth(), h.authMiddleware.RequireRole(h.adminRole))
			admin.GET("/participants", h.ListParticipants)
			admin.POST("/terminate", h.Terminate)
			if h.reports != nil {
				admin.GET("/reports", h.ListReports)
				admin.GET("/reports/item", h.GetReport)
			}
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	if !h.serving.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
		return
	}
	body := gin.H{"status": "ok"}
	if h.ws != nil {
		body["connections"] = h.ws.hub.Count()
	}
	c.JSON(http.StatusOK, body)
}

// ICEServers returns the STUN/TURN configuration for browsers.
func (h *Handler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}

// GetSession returns the latest stored snapshot, falling back to the
// event loop when nothing has been stored yet.
func (h *Handler) GetSession(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if h.store != nil {
		snap, err := h.store.Load(ctx)
		if err != nil {
			l.Warn().Err(err).Msg("failed to load session snapshot")
		} else if snap != nil {
			response.Success(c, snap)
			return
		}
	}

	snap, err := h.service.Snapshot(ctx)
	if err != nil {
		h.serviceError(c, err, "failed to read session")
		return
	}
	response.Success(c, snap)
}

// ListParticipants returns every connected participant.
func (h *Handler) ListParticipants(c *gin.Context) {
	participants, err := h.service.Participants(c.Request.Context())
	if err != nil {
		h.serviceError(c, err, "failed to list participants")
		return
	}
	response.Success(c, gin.H{"participants": participants, "count": len(participants)})
}

// Terminate ends the active session.
func (h *Handler) Terminate(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		l.Warn().Err(err).Msg("failed to bind terminate request")
		response.BadRequest(c, err.Error())
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = domain.EndReasonTerminated
	}

	if err := h.service.Terminate(ctx, middleware.GetUserID(c), reason); err != nil {
		if errors.Is(err, domain.ErrSessionInactive) {
			response.Conflict(c, "no active session")
			return
		}
		h.serviceError(c, err, "failed to terminate session")
		return
	}
	response.Success(c, gin.H{"terminated": true, "reason": reason})
}

func (h *Handler) serviceError(c *gin.Context, err error, msg string) {
	if errors.Is(err, service.ErrStopped) {
		response.ServiceUnavailable(c, "service is shutting down")
		return
	}
	l := log.Ctx(c.Request.Context())
	l.Error().Err(err).Msg(msg)
	response.InternalError(c, msg)
}
