package controllers

import (
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/rpc-tester/internal/params"
	"github.com/USA-RedDragon/rpc-tester/internal/presenter"
	"github.com/USA-RedDragon/rpc-tester/internal/sandbox"
	"github.com/USA-RedDragon/rpc-tester/internal/scripts"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/gin-gonic/gin"
	"github.com/go-errors/errors"
	"gorm.io/gorm"
)

func testerFromContext(c *gin.Context) (*tester.Tester, bool) {
	t, ok := c.MustGet("tester").(*tester.Tester)
	if !ok {
		slog.Error("Failed to get tester from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return nil, false
	}
	return t, true
}

func sessionFromContext(c *gin.Context) (*tester.Session, bool) {
	id, ok := c.Params.Get("id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return nil, false
	}
	t, ok := testerFromContext(c)
	if !ok {
		return nil, false
	}
	session, err := t.Session(id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session, true
}

func dbFromContext(c *gin.Context) (*gorm.DB, bool) {
	db, ok := c.MustGet("db").(*gorm.DB)
	if !ok || db == nil {
		slog.Error("Failed to get db from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return nil, false
	}
	return db, true
}

func libraryFromContext(c *gin.Context) (*scripts.Library, bool) {
	library, ok := c.MustGet("scripts").(*scripts.Library)
	if !ok || library == nil {
		slog.Error("Failed to get script library from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return nil, false
	}
	return library, true
}

// respondError maps tester errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var parseErr *params.ParamParseError
	var sbErr *sandbox.SandboxError
	switch {
	case errors.As(err, &sbErr):
		c.JSON(http.StatusUnprocessableEntity, sbErr.Body())
	case errors.As(err, &parseErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": parseErr.Error()})
	case errors.Is(err, tester.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, tester.ErrNothingSent),
		errors.Is(err, tester.ErrUnknownExample),
		errors.Is(err, scripts.ErrScriptNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, tester.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, tester.ErrSandboxDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, tester.ErrEndpointRequired),
		errors.Is(err, tester.ErrEndpointInvalid),
		errors.Is(err, tester.ErrMethodRequired),
		errors.Is(err, presenter.ErrUnknownMode),
		errors.Is(err, scripts.ErrInvalidName),
		errors.Is(err, scripts.ErrScriptEmpty),
		errors.Is(err, scripts.ErrScriptTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("Unhandled tester error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
	}
}
