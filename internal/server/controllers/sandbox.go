package controllers

import (
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/rpc-tester/internal/sandbox"
	"github.com/USA-RedDragon/rpc-tester/internal/server/apimodels"
	"github.com/gin-gonic/gin"
)

func GETSandbox(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	script, err := session.OpenSandbox()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apimodels.SandboxResponse{Script: script, Examples: sandbox.Examples()})
}

func POSTSandboxExample(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	script, err := session.LoadExample(c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apimodels.SandboxResponse{Script: script})
}

func POSTSandboxRun(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req apimodels.POSTSandboxRun
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Failed to bind sandbox script", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	result, err := session.RunSandbox(c.Request.Context(), req.Script)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func DELETESandbox(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	session.CloseSandbox()
	c.Status(http.StatusNoContent)
}
