package httpserver

import (
	"log"
	"net/http"
	"time"

	"storefront-api/internal/domain"
	"storefront-api/internal/provider"
	"storefront-api/internal/repository/sessioncache"

	"github.com/gin-gonic/gin"
)

// sessionTokenHeader is the alternative to the token query parameter.
const sessionTokenHeader = "x-session-token"

// cacheTTL bounds how long a token-to-user resolution is served without
// re-asking the provider.
const cacheTTL = 5 * time.Minute

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	WhatsApp string `json:"whatsapp"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
	Type  string `json:"type"`
}

func signinHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		user, sess, err := deps.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		cacheSession(c, deps, logger, user, sess)
		c.JSON(http.StatusOK, gin.H{"user": user, "session": sess})
	}
}

func signupHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		user, sess, err := deps.Auth.SignUp(c.Request.Context(), provider.SignUpInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			WhatsApp: req.WhatsApp,
		})
		if err != nil {
			writeError(c, logger, err)
			return
		}
		body := gin.H{"user": user}
		if sess != nil {
			// Session present only when the provider skips email verification.
			body["session"] = sess
			cacheSession(c, deps, logger, user, sess)
		}
		c.JSON(http.StatusCreated, body)
	}
}

func verifyOTPHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		user, sess, err := deps.Auth.VerifyOTP(c.Request.Context(), req.Email, req.Token, req.Type)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		cacheSession(c, deps, logger, user, sess)
		c.JSON(http.StatusOK, gin.H{"user": user, "session": sess})
	}
}

func sessionHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}
		user, err := resolveSession(c, deps, logger, token)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user, "session": domain.Session{AccessToken: token}})
	}
}

func signoutHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token != "" {
			if err := deps.Auth.SignOut(c.Request.Context(), token); err != nil {
				logger.Printf("httpserver: remote signout error=%v", err)
			}
			if deps.SessionCache != nil {
				if err := deps.SessionCache.Delete(c.Request.Context(), token); err != nil && err != domain.ErrNotFound {
					logger.Printf("httpserver: session cache delete error=%v", err)
				}
			}
		}
		// Signing out always succeeds from the caller's point of view.
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// requireSession resolves the session token and stores the user id in the
// gin context for the cart routes.
func requireSession(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}
		user, err := resolveSession(c, deps, logger, token)
		if err != nil {
			c.Abort()
			writeError(c, logger, err)
			return
		}
		c.Set("userID", user.ID)
		c.Next()
	}
}

// resolveSession answers "whose session is this token for", consulting the
// Postgres cache before the provider.
func resolveSession(c *gin.Context, deps Deps, logger *log.Logger, token string) (*domain.SessionUser, error) {
	ctx := c.Request.Context()
	if deps.SessionCache != nil {
		entry, err := deps.SessionCache.Get(ctx, token)
		if err == nil && time.Now().Before(entry.ExpiresAt) {
			u := entry.User
			return &u, nil
		}
		if err != nil && err != domain.ErrNotFound {
			logger.Printf("httpserver: session cache get error=%v", err)
		}
	}

	user, _, err := deps.Auth.SessionUser(ctx, token)
	if err != nil {
		if deps.SessionCache != nil {
			_ = deps.SessionCache.Delete(ctx, token)
		}
		return nil, err
	}
	if deps.SessionCache != nil {
		err := deps.SessionCache.Put(ctx, sessioncache.Entry{
			Token:     token,
			User:      *user,
			ExpiresAt: time.Now().Add(cacheTTL),
		})
		if err != nil {
			logger.Printf("httpserver: session cache put error=%v", err)
		}
	}
	return user, nil
}

func cacheSession(c *gin.Context, deps Deps, logger *log.Logger, user *domain.SessionUser, sess *domain.Session) {
	if deps.SessionCache == nil || sess == nil || sess.AccessToken == "" {
		return
	}
	err := deps.SessionCache.Put(c.Request.Context(), sessioncache.Entry{
		Token:     sess.AccessToken,
		User:      *user,
		ExpiresAt: time.Now().Add(cacheTTL),
	})
	if err != nil {
		logger.Printf("httpserver: session cache put error=%v", err)
	}
}

func sessionToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	return c.GetHeader(sessionTokenHeader)
}
