package editor

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-editor/internal/docpatch"
	"resume-editor/internal/reconcile"
	"resume-editor/internal/resumes"
	"resume-editor/internal/shared/server/middleware"
	"resume-editor/internal/shared/server/respond"
)

const (
	maxBodySize = 1 << 20 // 1MB

	contentTypeMergePatch = "application/merge-patch+json"

	defaultKeepAlive = 15 * time.Second
)

// Handler wires session routes to the manager.
type Handler struct {
	Manager   *Manager
	KeepAlive time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(m *Manager) *Handler {
	return &Handler{Manager: m, KeepAlive: defaultKeepAlive}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.open)
	rg.GET("/sessions/:id", h.get)
	rg.POST("/sessions/:id/patches", h.patch)
	rg.POST("/sessions/:id/save", h.save)
	rg.GET("/sessions/:id/events", h.events)
	rg.DELETE("/sessions/:id", h.close)
}

type openRequest struct {
	ResumeID string `json:"resumeId"`
}

func (h *Handler) open(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	var req openRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	if req.ResumeID != "" {
		c.Set("resumeId", req.ResumeID)
	}

	s, err := h.Manager.Open(c.Request.Context(), userID, strings.TrimSpace(req.ResumeID))
	if err != nil {
		writeError(c, err)
		return
	}
	snap := s.Snapshot()
	c.Set("sessionId", snap.SessionID)
	c.Set("resumeId", snap.ResumeID)
	c.Header("X-Session-Id", snap.SessionID)
	respond.JSON(c, http.StatusCreated, snap)
}

func (h *Handler) session(c *gin.Context) (*reconcile.Session, bool) {
	userID := middleware.UserIDFromContext(c)
	sessionID := c.Param("id")
	c.Set("sessionId", sessionID)

	s, err := h.Manager.Get(userID, sessionID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	c.Set("resumeId", s.ResumeID())
	return s, true
}

func (h *Handler) get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	respond.JSON(c, http.StatusOK, s.Snapshot())
}

type patchRequest struct {
	Patches []docpatch.Patch `json:"patches"`
}

func (h *Handler) patch(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	ctx := c.Request.Context()

	var (
		snap reconcile.Snapshot
		err  error
	)
	if strings.EqualFold(c.ContentType(), contentTypeMergePatch) {
		body, readErr := io.ReadAll(c.Request.Body)
		if readErr != nil || len(body) == 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "request body is required", nil)
			return
		}
		snap, err = s.ApplyMerge(ctx, body)
	} else {
		var req patchRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
		snap, err = s.Apply(ctx, req.Patches...)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, snap)
}

func (h *Handler) save(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Save(c.Request.Context()); err != nil {
		snap := s.Snapshot()
		if errors.Is(err, reconcile.ErrReadOnly) || errors.Is(err, reconcile.ErrClosed) || errors.Is(err, resumes.ErrForbidden) {
			writeError(c, err)
			return
		}
		respond.Error(c, http.StatusServiceUnavailable, "save_failed", "failed to save resume", gin.H{
			"state":     snap.State,
			"lastError": snap.LastError,
		})
		return
	}
	respond.JSON(c, http.StatusOK, s.Snapshot())
}

func (h *Handler) events(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	sessionID := c.Param("id")
	c.Set("sessionId", sessionID)

	s, release, err := h.Manager.Attach(userID, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()
	c.Set("resumeId", s.ResumeID())

	updates, cancel := s.Watch()
	defer cancel()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, ok := <-updates:
			if !ok {
				c.SSEvent("closed", gin.H{"sessionId": sessionID})
				return false
			}
			if snap.Source == reconcile.SourceError {
				c.SSEvent("error", gin.H{
					"state":     snap.State,
					"lastError": snap.LastError,
					"readOnly":  snap.ReadOnly,
				})
			}
			c.SSEvent("snapshot", snap)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().UTC()})
			return true
		}
	})
}

func (h *Handler) close(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	sessionID := c.Param("id")
	c.Set("sessionId", sessionID)

	if err := h.Manager.CloseSession(userID, sessionID); err != nil {
		writeError(c, err)
		return
	}
	respond.NoContent(c)
}

// writeError maps session and store errors onto the standard error envelope.
func writeError(c *gin.Context, err error) {
	var pathErr *docpatch.InvalidPathError
	switch {
	case errors.As(err, &pathErr):
		respond.Error(c, http.StatusBadRequest, "invalid_path", pathErr.Error(), gin.H{
			"path":    pathErr.Path,
			"segment": pathErr.Segment,
			"index":   pathErr.Index,
			"found":   pathErr.Found,
		})
	case errors.Is(err, resumes.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrSessionNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
	case errors.Is(err, resumes.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
	case errors.Is(err, resumes.ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "resume belongs to another user", nil)
	case errors.Is(err, reconcile.ErrReadOnly):
		respond.Error(c, http.StatusConflict, "read_only", "session is read-only", nil)
	case errors.Is(err, reconcile.ErrClosed):
		respond.Error(c, http.StatusGone, "session_closed", "session is closed", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process session", nil)
	}
}
