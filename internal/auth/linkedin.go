package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	sharedauth "resume-editor/internal/shared/auth"
	"resume-editor/internal/shared/server/respond"
	"resume-editor/internal/shared/telemetry"
	"resume-editor/internal/users"
)

const (
	linkedInUserInfoURL = "https://api.linkedin.com/v2/userinfo"

	// SubjectPrefix namespaces LinkedIn member ids in user ids and tokens.
	SubjectPrefix = "linkedin:"
)

// LinkedInService handles the LinkedIn OpenID Connect sign-in flow.
type LinkedInService struct {
	oauthConfig *oauth2.Config
	users       *users.Service
	uiRedirect  string
	userInfoURL string
	stateTTL    time.Duration
	stateStore  *stateStore
}

// NewLinkedInService builds a LinkedInService. Users may be nil, in which case
// signed-in identities are not persisted.
func NewLinkedInService(clientID, clientSecret, redirectURL, uiRedirect string, userSvc *users.Service) *LinkedInService {
	return &LinkedInService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     linkedin.Endpoint,
		},
		users:       userSvc,
		uiRedirect:  uiRedirect,
		userInfoURL: linkedInUserInfoURL,
		stateTTL:    5 * time.Minute,
		stateStore:  newStateStore(),
	}
}

// RegisterRoutes attaches LinkedIn auth routes.
func (s *LinkedInService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/linkedin/start", s.start)
	rg.GET("/auth/linkedin/callback", s.callback)
}

func (s *LinkedInService) start(c *gin.Context) {
	if s.oauthConfig.ClientID == "" || s.oauthConfig.ClientSecret == "" || s.oauthConfig.RedirectURL == "" {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "LinkedIn auth not configured", nil)
		return
	}

	state := uuid.NewString()
	s.stateStore.put(state, time.Now().Add(s.stateTTL))

	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *LinkedInService) callback(c *gin.Context) {
	if errCode := c.Query("error"); errCode != "" {
		respond.Error(c, http.StatusBadRequest, "auth_denied", "sign-in was cancelled", gin.H{"reason": errCode})
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}

	if !s.stateStore.consume(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		telemetry.Warn("auth.userinfo_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}
	if info.Sub == "" {
		respond.Error(c, http.StatusBadGateway, "auth_failed", "invalid user profile", nil)
		return
	}

	userID := SubjectPrefix + info.Sub
	if s.users != nil {
		_, err := s.users.UpsertFromAuth(ctx, users.User{
			ID:            userID,
			Provider:      "linkedin",
			Email:         info.Email,
			EmailVerified: info.EmailVerified,
			FullName:      info.Name,
			GivenName:     info.GivenName,
			FamilyName:    info.FamilyName,
			PictureURL:    info.Picture,
		})
		if err != nil {
			telemetry.Error("auth.user_upsert_failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store user", nil)
			return
		}
	}

	jwt, err := sharedauth.SignJWT(sharedauth.Claims{
		Sub:     userID,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	redirectURL, err := appendToken(s.uiRedirect, jwt)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}

	telemetry.Info("auth.signed_in", map[string]any{"user_id": userID})
	c.Redirect(http.StatusFound, redirectURL)
}

type linkedInUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

func (s *LinkedInService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (linkedInUserInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return linkedInUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return linkedInUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info linkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return linkedInUserInfo{}, err
	}
	if info.Name == "" {
		info.Name = strings.TrimSpace(info.GivenName + " " + info.FamilyName)
	}
	return info, nil
}

type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, v := range s.items {
		if now.After(v) {
			delete(s.items, k)
		}
	}
	s.items[state] = exp
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	return !time.Now().After(exp)
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
