package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-editor/internal/shared/server/middleware"
	"resume-editor/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

// me returns the stored profile, falling back to the token claims for guests
// and for users signed in before their profile was stored.
func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	guest := middleware.IsGuest(c)
	if !guest && h.Svc != nil {
		user, err := h.Svc.GetByID(c.Request.Context(), userID)
		switch {
		case err == nil:
			respond.JSON(c, http.StatusOK, gin.H{
				"id":            user.ID,
				"provider":      user.Provider,
				"email":         user.Email,
				"emailVerified": user.EmailVerified,
				"fullName":      user.DisplayName(),
				"pictureUrl":    user.PictureURL,
				"lastLoginAt":   user.LastLoginAt,
				"guest":         false,
			})
			return
		case !errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
			return
		}
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"id":         userID,
		"email":      middleware.UserEmailFromContext(c),
		"fullName":   middleware.UserNameFromContext(c),
		"pictureUrl": middleware.UserPictureFromContext(c),
		"guest":      guest,
	})
}
