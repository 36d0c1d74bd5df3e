package resumes

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-editor/internal/docpatch"
	"resume-editor/internal/shared/server/middleware"
	"resume-editor/internal/shared/server/respond"
	"resume-editor/internal/shared/util"
)

const (
	maxBodySize = 1 << 20 // 1MB

	contentTypeMergePatch = "application/merge-patch+json"
	contentTypeJSONPatch  = "application/json-patch+json"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches resume routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resumes/current", h.current)
	rg.GET("/resumes/:id", h.get)
	rg.PUT("/resumes/:id", h.replace)
	rg.PATCH("/resumes/:id", h.patch)
	rg.GET("/resumes/:id/stats", h.stats)
}

func (h *Handler) current(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	rec, created, err := h.Svc.Current(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("resumeId", rec.ID)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	setETag(c, rec)
	respond.JSON(c, status, toResponse(rec))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	resumeID := c.Param("id")
	c.Set("resumeId", resumeID)

	rec, err := h.Svc.Get(c.Request.Context(), userID, resumeID)
	if err != nil {
		writeError(c, err)
		return
	}
	if tag := setETag(c, rec); tag != "" && c.GetHeader("If-None-Match") == tag {
		c.Status(http.StatusNotModified)
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(rec))
}

// setETag tags the response with the content hash and returns the tag.
func setETag(c *gin.Context, rec Record) string {
	tag, err := util.ETag(rec.Content)
	if err != nil {
		return ""
	}
	c.Header("ETag", tag)
	return tag
}

type replaceRequest struct {
	Content Document `json:"content"`
}

func (h *Handler) replace(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	resumeID := c.Param("id")
	c.Set("resumeId", resumeID)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	var req replaceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "content is required", nil)
		return
	}

	rec, err := h.Svc.Replace(c.Request.Context(), userID, resumeID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	setETag(c, rec)
	respond.JSON(c, http.StatusOK, toResponse(rec))
}

type patchRequest struct {
	Patches []docpatch.Patch `json:"patches"`
}

func (h *Handler) patch(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	resumeID := c.Param("id")
	c.Set("resumeId", resumeID)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	ctx := c.Request.Context()

	var (
		rec Record
		err error
	)
	switch contentType := strings.ToLower(c.ContentType()); contentType {
	case contentTypeMergePatch, contentTypeJSONPatch:
		body, readErr := io.ReadAll(c.Request.Body)
		if readErr != nil || len(body) == 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "request body is required", nil)
			return
		}
		if contentType == contentTypeMergePatch {
			rec, err = h.Svc.Merge(ctx, userID, resumeID, body)
		} else {
			rec, err = h.Svc.JSONPatch(ctx, userID, resumeID, body)
		}
	default:
		var req patchRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
		rec, err = h.Svc.Patch(ctx, userID, resumeID, req.Patches)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	setETag(c, rec)
	respond.JSON(c, http.StatusOK, toResponse(rec))
}

func (h *Handler) stats(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	resumeID := c.Param("id")
	c.Set("resumeId", resumeID)

	stats, err := h.Svc.Stats(c.Request.Context(), userID, resumeID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, stats)
}

// writeError maps service errors onto the standard error envelope.
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
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "resume belongs to another user", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process resume", nil)
	}
}
