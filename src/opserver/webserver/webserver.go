package webserver

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/redquill/redquill/src/opserver/catalog"
	"github.com/redquill/redquill/src/opserver/config"
	"github.com/redquill/redquill/src/opserver/engine"
)

func New(cfg config.Config, manager *engine.Manager, cat *catalog.Catalog, rdb *redis.Client) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, manager, cat, rdb)
	return g
}
