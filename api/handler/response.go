package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response 统一响应包络
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func respondOKMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
