package controllers

import (
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/rpc-tester/internal/presenter"
	"github.com/USA-RedDragon/rpc-tester/internal/server/apimodels"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/gin-gonic/gin"
)

func POSTSession(c *gin.Context) {
	t, ok := testerFromContext(c)
	if !ok {
		return
	}
	session := t.NewSession()
	c.JSON(http.StatusCreated, apimodels.POSTSessionResponse{
		ID:       session.ID(),
		Endpoint: session.Endpoint(),
	})
}

func GETSession(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func DELETESession(c *gin.Context) {
	id, ok := c.Params.Get("id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}
	t, ok := testerFromContext(c)
	if !ok {
		return
	}
	if err := t.CloseSession(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func PUTEndpoint(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req apimodels.PUTEndpoint
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Failed to bind endpoint", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := session.SetEndpoint(req.Endpoint); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apimodels.EndpointResponse{Endpoint: session.Endpoint()})
}

func POSTEndpointReset(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, apimodels.EndpointResponse{Endpoint: session.ResetEndpoint()})
}

// POSTSend answers 200 whenever the request went out, even when the
// endpoint failed. The failure travels in the result.
func POSTSend(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req apimodels.POSTSend
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Failed to bind send request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	result, err := session.Send(c.Request.Context(), tester.SendInput{
		Method: req.Method,
		Custom: req.Custom,
		Fields: req.Fields,
		Params: req.Params,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func GETLast(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	mode, err := presenter.ParseMode(c.Query("mode"))
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := session.Last(mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func POSTCopy(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.CopyLastPayload(&tester.BufferClipboard{}))
}
