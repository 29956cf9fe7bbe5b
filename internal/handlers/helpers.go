package handlers

import (
	"strconv"
	"time"

	"estategate/internal/middleware"
	"estategate/internal/services"
	"estategate/pkg/response"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// currentActor 未登录时直接写入401响应
func currentActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Unauthorized(c, "请先登录")
	}
	return actor, ok
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

// parseDateRange 解析 from_date/to_date，只给日期时 to_date 包含当天
func parseDateRange(c *gin.Context) (from, to *time.Time, ok bool) {
	if raw := c.Query("from_date"); raw != "" {
		t, _, err := parseTimeParam(raw)
		if err != nil {
			response.BadRequest(c, "from_date 格式错误，应为 YYYY-MM-DD 或 RFC3339")
			return nil, nil, false
		}
		from = &t
	}
	if raw := c.Query("to_date"); raw != "" {
		t, dateOnly, err := parseTimeParam(raw)
		if err != nil {
			response.BadRequest(c, "to_date 格式错误，应为 YYYY-MM-DD 或 RFC3339")
			return nil, nil, false
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		to = &t
	}
	return from, to, true
}

func parseTimeParam(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
