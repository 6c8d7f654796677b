package http

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/layer-3/twofa/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	// report validation errors under the JSON field names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// SetupRouter sets up the Gin router. Metrics are served from gatherer when
// it is not nil. The client address is only taken from forwarding headers
// when the peer is one of trustedProxies (IPs or CIDRs).
func SetupRouter(authService *service.AuthService, gatherer prometheus.Gatherer, trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	if trustedProxies == nil {
		trustedProxies = []string{}
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), RequestLogger())

	// Create handlers
	handlers := NewAuthHandlers(authService)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/code", handlers.ObtainCodeToken)
		auth.POST("/token", handlers.ObtainAuthToken)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/verify", handlers.Verify)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return router, nil
}
