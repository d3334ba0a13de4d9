package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anjun206/board-app/internal/infra/security"
	"github.com/anjun206/board-app/internal/transport/http/middleware"
	"github.com/anjun206/board-app/internal/usecase"
)

const (
	eppCookieName     = "epp"
	refreshCookieName = "refresh_token"
	tokenTypeBearer   = "bearer"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth          *usecase.AuthService
	registration  *usecase.RegistrationService
	verification  *usecase.VerificationService
	tokens        *security.TokenService
	floor         *security.ResponseFloor
	limitWindow   time.Duration
	secureCookies bool
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(
	auth *usecase.AuthService,
	registration *usecase.RegistrationService,
	verification *usecase.VerificationService,
	tokens *security.TokenService,
	floor *security.ResponseFloor,
	limitWindow time.Duration,
	secureCookies bool,
) *AuthHandler {
	return &AuthHandler{
		auth:          auth,
		registration:  registration,
		verification:  verification,
		tokens:        tokens,
		floor:         floor,
		limitWindow:   limitWindow,
		secureCookies: secureCookies,
	}
}

// RouteGuards carries the per-route rate limit middleware for the sensitive
// endpoints. Nil entries mean no guard.
type RouteGuards struct {
	Start  gin.HandlerFunc
	Verify gin.HandlerFunc
	Login  gin.HandlerFunc
}

// RegisterRoutes binds authentication routes under the given group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, guards RouteGuards) {
	r.POST("/signup", h.signup)
	r.POST("/start", chain(guards.Start, h.start)...)
	r.POST("/verify", chain(guards.Verify, h.verify)...)
	r.POST("/login", chain(guards.Login, h.login)...)
	r.POST("/token", h.token)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", middleware.RequireAuth(h.auth), h.logout)
	r.GET("/me", middleware.RequireAuth(h.auth), h.me)
}

func chain(guard gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if guard == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{guard, handler}
}

func (h *AuthHandler) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid signup payload"))
		return
	}

	user, err := h.registration.Signup(c.Request.Context(), usecase.SignupInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrEmailTaken):
			c.JSON(http.StatusConflict, NewErrorResponse(c, "email already registered"))
		case errors.Is(err, usecase.ErrUsernameTaken):
			c.JSON(http.StatusConflict, NewErrorResponse(c, "username already taken"))
		case errors.Is(err, usecase.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "password does not meet requirements"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to create account"))
		}
		return
	}

	c.JSON(http.StatusCreated, newUserSummary(user))
}

func (h *AuthHandler) start(c *gin.Context) {
	started := time.Now()

	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.floor.Wait(started)
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	err := h.verification.Start(c.Request.Context(), usecase.StartInput{
		Email: req.Email,
		IP:    c.ClientIP(),
	})

	h.floor.Wait(started)

	if err != nil {
		if errors.Is(err, usecase.ErrRateLimited) {
			h.respondRateLimited(c)
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to start verification"))
		return
	}

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *AuthHandler) verify(c *gin.Context) {
	started := time.Now()

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.floor.Wait(started)
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	token, err := h.verification.Verify(c.Request.Context(), usecase.VerifyInput{
		Email: req.Email,
		Code:  req.Code,
		IP:    c.ClientIP(),
	})

	h.floor.Wait(started)

	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrRateLimited):
			h.respondRateLimited(c)
		case errors.Is(err, usecase.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid or expired code"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to verify code"))
		}
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(eppCookieName, token, int(h.tokens.EmailProofTTL().Seconds()), "/", "", h.secureCookies, true)

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *AuthHandler) login(c *gin.Context) {
	started := time.Now()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.floor.Wait(started)
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	proof, _ := c.Cookie(eppCookieName)

	pair, user, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		ProofToken: proof,
		IP:         c.ClientIP(),
	})

	h.floor.Wait(started)

	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrPasswordIncorrect):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "password incorrect"))
		case errors.Is(err, usecase.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid email or password"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to log in"))
		}
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	h.clearEPPCookie(c)

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   tokenTypeBearer,
		User:        newUserSummary(user),
	})
}

// token handles the form-based exchange where the identifier may be an email
// or a username. It issues tokens in the response body only and sets no
// cookies.
func (h *AuthHandler) token(c *gin.Context) {
	identifier := c.PostForm("username")
	password := c.PostForm("password")

	pair, user, err := h.auth.TokenByIdentifier(c.Request.Context(), identifier, password)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   tokenTypeBearer,
		User:        newUserSummary(user),
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	token, err := c.Cookie(refreshCookieName)
	if err != nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "missing refresh token"))
		return
	}

	pair, user, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidRefreshToken) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid refresh token"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to refresh token"))
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   tokenTypeBearer,
		User:        newUserSummary(user),
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), user.ID); err != nil {
		if errors.Is(err, usecase.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to log out"))
		return
	}

	h.clearRefreshCookie(c)

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *AuthHandler) me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, newUserSummary(user))
}

func (h *AuthHandler) respondRateLimited(c *gin.Context) {
	seconds := int(math.Ceil(h.limitWindow.Seconds()))
	c.Writer.Header().Set("Retry-After", strconv.Itoa(seconds))
	c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many requests"))
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, token, int(h.tokens.RefreshTTL().Seconds()), "/", "", h.secureCookies, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", h.secureCookies, true)
}

func (h *AuthHandler) clearEPPCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(eppCookieName, "", -1, "/", "", h.secureCookies, true)
}
