package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"deepfake-service/pkg/errno"
	"deepfake-service/pkg/logger"
)

// ErrorBody 错误响应体
type ErrorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Success 返回200和业务数据
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Failed 根据错误码返回对应的HTTP状态和错误信息
func Failed(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	status := code.Status()
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
			"error":      err.Error(),
		})
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg, Code: code.Code})
}
