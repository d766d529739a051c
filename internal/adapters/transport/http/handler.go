package http

import (
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/http/middleware"
	appsvc "github.com/Miraines/MoonyAndStarry/weather-auth/internal/app/auth/service"
	authErrors "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
	lg "github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RefreshCookie is the name of the HttpOnly cookie carrying the refresh token.
const RefreshCookie = "refreshToken"

type CookieConfig struct {
	Domain string
	Secure bool
}

type Handler struct {
	svc    appsvc.Service
	log    *zap.Logger
	cookie CookieConfig
}

func NewHandler(svc appsvc.Service, log *zap.Logger, cookie CookieConfig) *Handler {
	return &Handler{svc: svc, log: log, cookie: cookie}
}

// RegisterRoutes mounts the /api/auth group on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/auth")
	g.GET("", middleware.RequireAuth(h.svc), h.me)
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh-token", h.refresh)
}

func (h *Handler) me(c *gin.Context) {
	name := middleware.Username(c)
	h.log.Debug("/api/auth", lg.Subject(name), zap.String("role", middleware.Role(c)))
	c.JSON(http.StatusOK, gin.H{"username": name})
}

func (h *Handler) register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("/register", lg.Subject(body.Username))

	user, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("/login", lg.Subject(body.Username))

	sess, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.issueSession(c, sess)
}

func (h *Handler) refresh(c *gin.Context) {
	// отсутствующая кука = пустой токен, сервис ответит invalid refresh token
	raw, _ := c.Cookie(RefreshCookie)

	sess, err := h.svc.Refresh(c.Request.Context(), dto.RefreshDTO{RefreshToken: raw})
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.log.Info("/refresh-token", lg.Subject(sess.Username))
	h.issueSession(c, sess)
}

func (h *Handler) issueSession(c *gin.Context, sess model.Session) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookie,
		Value:    sess.Refresh.Token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		Expires:  sess.Refresh.Expires,
		MaxAge:   int(sess.Refresh.Expires.Sub(sess.Refresh.Created).Seconds()),
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	c.JSON(http.StatusOK, gin.H{
		"token":     sess.AccessToken,
		"expiresIn": int(sess.AccessTTL.Seconds()),
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case authErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case authErrors.IsUserNotFound(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "user not found"})
	case authErrors.IsWrongPassword(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong password"})
	case authErrors.IsInvalidRefreshToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
	case authErrors.IsRefreshTokenExpired(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
	case authErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
