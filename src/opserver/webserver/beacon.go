package webserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/redquill/redquill/src/opserver/data"
	"github.com/redquill/redquill/src/opserver/engine"
)

type Beacon struct {
	manager *engine.Manager
	rdb     *redis.Client
}

func NewBeacon(manager *engine.Manager, rdb *redis.Client) Beacon {
	return Beacon{manager: manager, rdb: rdb}
}

// Check handles an agent poll: refresh liveness, hand back pending work. An
// empty command list is a normal 200, not an error.
func (b Beacon) Check(c *gin.Context) {
	var req struct {
		ID       string `json:"id"`
		Platform string `json:"platform" binding:"required,max=16"`
		Hostname string `json:"hostname" binding:"max=128"`
		Group    string `json:"group" binding:"max=64"`
		Interval uint32 `json:"interval"`
		Jitter   uint32 `json:"jitter"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	resp, err := b.manager.Beacon(engine.BeaconRequest{
		AgentID:        req.ID,
		Platform:       req.Platform,
		Hostname:       req.Hostname,
		Group:          req.Group,
		BeaconInterval: req.Interval,
		Jitter:         req.Jitter,
	})
	if err != nil {
		log.Printf("beacon: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "beacon failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Result accepts a completed link's output. Duplicate submissions are
// acknowledged without re-entering the engine; protocol violations get a
// client-visible rejection and no state change.
func (b Beacon) Result(c *gin.Context) {
	var req struct {
		ID      string `json:"id" binding:"required"`
		LinkID  string `json:"linkId" binding:"required"`
		Output  string `json:"output"`
		Success *bool  `json:"success" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	// The fingerprint shortcut only ever answers for results the engine has
	// already accepted: it is recorded after SubmitResult succeeds, keyed by
	// reporting agent, so a rejected submission leaves no trace and cannot
	// shadow the owner's report.
	var fp string
	if b.rdb != nil {
		fp = data.ResultFingerprint(req.ID, req.LinkID, req.Output)
		if seen, err := data.SeenResult(c, b.rdb, req.LinkID, fp); err == nil && seen {
			c.JSON(http.StatusOK, gin.H{"ack": true, "duplicate": true})
			return
		}
	}

	err := b.manager.SubmitResult(req.ID, req.LinkID, req.Output, *req.Success)
	switch {
	case err == nil:
		if b.rdb != nil {
			if err := data.MarkResult(c, b.rdb, req.LinkID, fp); err != nil {
				log.Printf("result dedup mark for link %s: %v", req.LinkID, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"ack": true})
	case errors.Is(err, engine.ErrUnknownAgent), errors.Is(err, engine.ErrUnknownLink):
		log.Printf("result rejected from IP %s: %v", c.ClientIP(), err)
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
	case errors.Is(err, engine.ErrWrongAgent), errors.Is(err, engine.ErrLinkNotSent):
		log.Printf("result rejected from IP %s: %v", c.ClientIP(), err)
		c.JSON(http.StatusConflict, gin.H{"err": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"err": "result handling failed"})
	}
}
