package middlewares

import "github.com/gin-gonic/gin"

// abortError writes the same flat error body the handlers use.
func abortError(c *gin.Context, status int, code, message string) {
	reqID := c.GetString(CtxRequestID)
	if reqID == "" {
		reqID = c.GetHeader(requestIDHeader)
	}

	body := gin.H{
		"code":    code,
		"message": message,
	}
	if reqID != "" {
		body["requestId"] = reqID
	}

	c.AbortWithStatusJSON(status, body)
}
