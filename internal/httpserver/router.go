package httpserver

import (
	"context"
	"log"
	"time"

	"storefront-api/internal/domain"
	"storefront-api/internal/provider"
	"storefront-api/internal/query"
	"storefront-api/internal/repository/cartmirror"
	"storefront-api/internal/repository/sessioncache"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type authProvider interface {
	SignIn(ctx context.Context, email, password string) (*domain.SessionUser, *domain.Session, error)
	SignUp(ctx context.Context, in provider.SignUpInput) (*domain.SessionUser, *domain.Session, error)
	VerifyOTP(ctx context.Context, email, token, otpType string) (*domain.SessionUser, *domain.Session, error)
	SessionUser(ctx context.Context, accessToken string) (*domain.SessionUser, *domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

type catalogProvider interface {
	Products(ctx context.Context, q query.Query) ([]domain.Product, int, error)
}

// Deps carries the collaborators the routes need.
type Deps struct {
	Auth         authProvider
	Catalog      catalogProvider
	CartMirror   cartmirror.Repository
	SessionCache sessioncache.Repository
}

// buildRouter wires routes for the storefront API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps, allowedOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	if len(allowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = allowedOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "x-session-token", "Authorization")
		corsCfg.MaxAge = 12 * time.Hour
		router.Use(cors.New(corsCfg))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	auth := router.Group("/api/auth")
	auth.POST("/signin", signinHandler(deps, logger))
	auth.POST("/signup", signupHandler(deps, logger))
	auth.POST("/verify-otp", verifyOTPHandler(deps, logger))
	auth.GET("/session", sessionHandler(deps, logger))
	auth.POST("/signout", signoutHandler(deps, logger))

	router.GET("/api/products", productsHandler(deps, logger))

	cart := router.Group("/api/cart")
	cart.Use(requireSession(deps, logger))
	cart.GET("", getCartHandler(deps, logger))
	cart.PUT("", putCartHandler(deps, logger))
	cart.DELETE("", deleteCartHandler(deps, logger))

	return router
}
