package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/redquill/redquill/src/opserver/catalog"
	"github.com/redquill/redquill/src/opserver/config"
	"github.com/redquill/redquill/src/opserver/engine"
)

func attachRoutes(r *gin.Engine, cfg config.Config, manager *engine.Manager, cat *catalog.Catalog, rdb *redis.Client) {
	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Agent-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	authH := NewAuth([]byte(cfg.JWTSecret), cfg.OperatorPassHash)
	beaconH := NewBeacon(manager, rdb)
	opsH := NewOperations(manager, cat)

	loginLimiter := NewRateLimiter(10, time.Minute)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/login", RateLimitMiddleware(loginLimiter), authH.Login)

		agent := v1.Group("")
		agent.Use(AgentKeyMiddleware(cfg.AgentKey))
		agent.POST("/beacon", beaconH.Check)
		agent.POST("/results", beaconH.Result)

		secured := v1.Group("")
		secured.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
		secured.POST("/operations", opsH.Create)
		secured.GET("/operations", opsH.List)
		secured.GET("/operations/:id", opsH.Get)
		secured.POST("/operations/:id/cancel", opsH.Cancel)
		secured.GET("/agents", opsH.Agents)
		secured.GET("/abilities", opsH.Abilities)
		secured.GET("/profiles", opsH.Profiles)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
