package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Setup404Handler answers unknown paths and wrong methods with JSON.
func Setup404Handler(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":  "method_not_allowed",
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not_found",
			"path":  c.Request.URL.Path,
		})
	})
}
