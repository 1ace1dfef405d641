package sessions

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tholdem/uniqn-sync/pkg/auth"
	"github.com/tholdem/uniqn-sync/pkg/records"
	firestore "github.com/tholdem/uniqn-sync/repos/firestore"
	"github.com/tholdem/uniqn-sync/services/unified"
)

const (
	streamBuffer      = 64
	heartbeatInterval = 15 * time.Second
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	DELETE(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Sessions is the service the HTTP transport is provided for.
type Sessions interface {
	Open(ctx context.Context, userID string, role records.Role) (*Session, bool, error)
	Get(userID string) (*Session, error)
	Close(userID string) error
	Metrics() unified.Report
	InvalidateCache(col records.Collection) (int, error)
	SetWorkLogStatus(ctx context.Context, eventID string, ids []string, status records.WorkLogStatus) (*firestore.StatusResult, error)
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Sessions

	// The router instance to configure the HTTP routes. Requests must
	// already carry the identity set by auth.AuthMiddleware.
	Router Router

	// Heartbeat is the interval of keep-alive events on streams.
	// Zero means 15s.
	Heartbeat time.Duration
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = heartbeatInterval
	}
	r := opts.Router
	h := &httpHandler{opts}
	privileged := auth.RequireRole(records.RoleAdmin, records.RoleManager)

	r.POST("/session", h.openHandler)
	r.GET("/session", h.sessionHandler)
	r.DELETE("/session", h.closeHandler)
	r.GET("/session/snapshot", h.snapshotHandler)
	r.GET("/session/stream", h.streamHandler)
	r.GET("/session/staff/:staff_id/worklogs", h.staffWorkLogsHandler)
	r.GET("/session/staff/:staff_id/worklog", h.workLogForHandler)
	r.GET("/session/postings/:post_id/applications", h.postApplicationsHandler)

	r.GET("/metrics", privileged, h.metricsHandler)
	r.POST("/cache/invalidate/:collection", privileged, h.invalidateHandler)
	r.POST("/worklogs/status", privileged, h.workLogStatusHandler)
}

type httpHandler struct {
	HTTPOptions
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, records.ErrUnknownCollection),
		errors.Is(err, records.ErrUnknownRole),
		errors.Is(err, unified.ErrMissingUser),
		errors.Is(err, firestore.ErrMissingEvent):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
	c.Abort()
}

func toResponse(s *Session, subscribed []records.Collection) SessionResponse {
	listening := s.Collections()
	sort.Slice(listening, func(i, j int) bool { return listening[i] < listening[j] })
	return SessionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		Role:        s.Role,
		CreatedAt:   s.CreatedAt,
		Listening:   listening,
		Subscribed:  subscribed,
		InitialLoad: s.Store.Initial(),
	}
}

func (h *httpHandler) session(c *gin.Context) (*Session, bool) {
	s, err := h.Service.Get(auth.UserID(c))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return s, true
}

func (h *httpHandler) openHandler(c *gin.Context) {
	s, created, err := h.Service.Open(c.Request.Context(), auth.UserID(c), auth.Role(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, toResponse(s, s.Store.Expected()))
}

func (h *httpHandler) sessionHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toResponse(s, s.Store.Expected()))
}

func (h *httpHandler) closeHandler(c *gin.Context) {
	if err := h.Service.Close(auth.UserID(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) snapshotHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Store.Snapshot())
}

// streamHandler sends the snapshot as the first event and then every
// applied action, named after the action, until the client leaves or the
// session ends.
func (h *httpHandler) streamHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	actions, cancel := s.Store.Watch(streamBuffer)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("snapshot", s.Store.Snapshot())
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-actions:
			if !ok {
				c.SSEvent("closed", gin.H{"sessionId": s.ID})
				c.Writer.Flush()
				return
			}
			c.SSEvent(a.Name(), a)
			c.Writer.Flush()
		case t := <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"time": t.UTC()})
			c.Writer.Flush()
		}
	}
}

// ownStaffID returns the staff_id route parameter. Staff sessions may only
// name themselves.
func ownStaffID(c *gin.Context, s *Session) (string, bool) {
	staffID := c.Param("staff_id")
	if s.Role == records.RoleStaff && staffID != s.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "staff may only read their own work logs"})
		c.Abort()
		return "", false
	}
	return staffID, true
}

func (h *httpHandler) staffWorkLogsHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	staffID, ok := ownStaffID(c, s)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"workLogs": s.Store.WorkLogsForStaff(staffID)})
}

func (h *httpHandler) workLogForHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	staffID, ok := ownStaffID(c, s)
	if !ok {
		return
	}
	eventID := c.Query("eventId")
	date := c.Query("date")
	if eventID == "" || date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eventId and date are required"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, s.Store.WorkLogFor(staffID, eventID, date))
}

func (h *httpHandler) postApplicationsHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": s.Store.ApplicationsForPost(c.Param("post_id"))})
}

func (h *httpHandler) metricsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Metrics())
}

func (h *httpHandler) invalidateHandler(c *gin.Context) {
	col := records.Collection(c.Param("collection"))
	n, err := h.Service.InvalidateCache(col)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, InvalidateResponse{Collection: col, Removed: n})
}

func (h *httpHandler) workLogStatusHandler(c *gin.Context) {
	var request WorkLogStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	status, ok := records.ParseWorkLogStatus(request.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown work log status"})
		c.Abort()
		return
	}

	result, err := h.Service.SetWorkLogStatus(c.Request.Context(), request.EventID, request.WorkLogIDs, status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	code := http.StatusOK
	if len(result.Failed) > 0 {
		code = http.StatusMultiStatus
	}
	c.JSON(code, result)
}
