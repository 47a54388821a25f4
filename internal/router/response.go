package router

import "github.com/gin-gonic/gin"

// errorResponse is the envelope spec/6/7 describes for every non-2xx API
// reply: errorCode carries the taxonomy from spec/7 (400/401/404/429/500),
// success is always false on this path.
type errorResponse struct {
	ErrorCode    int    `json:"errorCode"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

func writeError(c *gin.Context, status, errorCode int, message string) {
	c.JSON(status, errorResponse{ErrorCode: errorCode, Success: false, ErrorMessage: message})
}
