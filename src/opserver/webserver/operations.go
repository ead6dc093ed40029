package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redquill/redquill/src/opserver/catalog"
	"github.com/redquill/redquill/src/opserver/engine"
)

type Operations struct {
	manager *engine.Manager
	cat     *catalog.Catalog
}

func NewOperations(manager *engine.Manager, cat *catalog.Catalog) Operations {
	return Operations{manager: manager, cat: cat}
}

func (o Operations) Create(c *gin.Context) {
	var req struct {
		Name      string            `json:"name" binding:"required,min=1,max=128"`
		ProfileID string            `json:"profileId" binding:"required"`
		Group     string            `json:"group" binding:"max=64"`
		Facts     map[string]string `json:"facts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	status, err := o.manager.StartOperation(req.Name, req.ProfileID, req.Group, req.Facts)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, status)
	case errors.Is(err, catalog.ErrUnknownProfile):
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
	case errors.Is(err, engine.ErrUnknownAgent):
		c.JSON(http.StatusConflict, gin.H{"err": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
	}
}

func (o Operations) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operations": o.manager.Statuses()})
}

func (o Operations) Get(c *gin.Context) {
	status, err := o.manager.Status(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (o Operations) Cancel(c *gin.Context) {
	err := o.manager.Cancel(c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"cancelled": true})
	case errors.Is(err, engine.ErrUnknownOperation):
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
	case errors.Is(err, engine.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"err": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
	}
}

func (o Operations) Agents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": o.manager.Agents()})
}

func (o Operations) Abilities(c *gin.Context) {
	type abilityView struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Platforms []string `json:"platforms,omitempty"`
		Executor  string   `json:"executor"`
		Requires  []string `json:"requires,omitempty"`
	}
	var out []abilityView
	for _, a := range o.cat.Abilities() {
		out = append(out, abilityView{
			ID:        a.ID,
			Name:      a.Name,
			Platforms: a.Platforms,
			Executor:  a.Executor,
			Requires:  a.RequiredFacts(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"abilities": out})
}

func (o Operations) Profiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": o.cat.Profiles()})
}
