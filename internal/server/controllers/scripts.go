package controllers

import (
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/rpc-tester/internal/server/apimodels"
	"github.com/gin-gonic/gin"
)

func GETScripts(c *gin.Context) {
	library, ok := libraryFromContext(c)
	if !ok {
		return
	}
	names, err := library.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apimodels.GETScripts{Scripts: names})
}

func GETScript(c *gin.Context) {
	library, ok := libraryFromContext(c)
	if !ok {
		return
	}
	name := c.Param("name")
	script, err := library.Load(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apimodels.ScriptResponse{Name: name, Script: script})
}

func PUTScript(c *gin.Context) {
	library, ok := libraryFromContext(c)
	if !ok {
		return
	}
	var req apimodels.PUTScript
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Failed to bind script", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	name := c.Param("name")
	if err := library.Save(c.Request.Context(), name, req.Script); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apimodels.ScriptResponse{Name: name, Script: req.Script})
}

func DELETEScript(c *gin.Context) {
	library, ok := libraryFromContext(c)
	if !ok {
		return
	}
	if err := library.Delete(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POSTSandboxScript opens a saved script in the session's sandbox.
func POSTSandboxScript(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	library, ok := libraryFromContext(c)
	if !ok {
		return
	}
	script, err := library.Load(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := session.LoadScript(script); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apimodels.SandboxResponse{Script: script})
}
