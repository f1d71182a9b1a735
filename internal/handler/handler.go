package handler

import (
	"strconv"

	apperrors "homechat/pkg/errors"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
)

// paramID 解析路径中的数字ID，非法时直接返回404
func paramID(c *gin.Context, name string, notFound error) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.FromError(c, notFound)
		return 0, false
	}
	return uint(id), true
}

// queryInt 解析查询参数中的整数，缺失或非法时返回默认值
func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// bindJSON 绑定请求体，失败时按参数校验错误返回
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.FromError(c, apperrors.Field("body", err.Error()))
		return false
	}
	return true
}
