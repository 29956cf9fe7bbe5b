package handlers

import (
	"strconv"

	"estategate/internal/services"
	"estategate/pkg/pagination"
	"estategate/pkg/response"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	service *services.ActivityService
}

func NewActivityHandler(service *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List 当前用户自己的操作记录
func (h *ActivityHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	h.list(c, services.ActivityFilter{UserID: actor.ID})
}

// AdminList 本小区的操作记录，可按 user_id 过滤
func (h *ActivityHandler) AdminList(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	filter := services.ActivityFilter{EstateID: actor.EstateID}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			response.BadRequest(c, "user_id 格式错误")
			return
		}
		filter.UserID = uint(userID)
	}
	h.list(c, filter)
}

func (h *ActivityHandler) list(c *gin.Context, filter services.ActivityFilter) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}
	filter.Action = c.Query("action")
	filter.FromDate = from
	filter.ToDate = to

	pageParams := pagination.ParsePageParams(c)
	activities, total, err := h.service.List(c.Request.Context(), filter, pageParams)
	if err != nil {
		response.FromError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, activities, pageInfo)
}
