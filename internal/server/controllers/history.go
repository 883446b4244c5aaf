package controllers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/USA-RedDragon/rpc-tester/internal/db/models"
	"github.com/USA-RedDragon/rpc-tester/internal/server/apimodels"
	"github.com/gin-gonic/gin"
)

func GETHistory(c *gin.Context) {
	db, ok := dbFromContext(c)
	if !ok {
		return
	}
	filter := models.HistoryFilter{
		SessionID: c.Query("session"),
		Method:    c.Query("method"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}
	entries, err := models.ListHistory(db.WithContext(c.Request.Context()), filter)
	if err != nil {
		slog.Error("Failed to list history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	c.JSON(http.StatusOK, apimodels.GETHistory{Entries: entries})
}

func GETHistoryEntry(c *gin.Context) {
	db, ok := dbFromContext(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("entry"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid history entry"})
		return
	}
	entry, err := models.FindHistoryEntry(db.WithContext(c.Request.Context()), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
