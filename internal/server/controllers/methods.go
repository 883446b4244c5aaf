package controllers

import (
	"net/http"

	"github.com/USA-RedDragon/rpc-tester/internal/registry"
	"github.com/USA-RedDragon/rpc-tester/internal/server/apimodels"
	"github.com/gin-gonic/gin"
)

func GETMethods(c *gin.Context) {
	c.JSON(http.StatusOK, apimodels.GETMethods{Methods: registry.All()})
}
