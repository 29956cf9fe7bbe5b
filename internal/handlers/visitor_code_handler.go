package handlers

import (
	"context"

	"estategate/internal/models"
	"estategate/internal/services"
	"estategate/pkg/pagination"
	"estategate/pkg/response"

	"github.com/gin-gonic/gin"
)

type VisitorCodeHandler struct {
	service *services.VisitorCodeService
}

func NewVisitorCodeHandler(service *services.VisitorCodeService) *VisitorCodeHandler {
	return &VisitorCodeHandler{
		service: service,
	}
}

// VerifyByCodeRequest 按访客码核验请求
type VerifyByCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// Create 住户签发访客码
func (h *VisitorCodeHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	// 字段规则由服务层统一校验，这里只负责解析JSON
	var req services.IssueVisitorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	code, err := h.service.Issue(c.Request.Context(), actor, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, "访客码签发成功", code)
}

// List 当前用户签发的访客码
func (h *VisitorCodeHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	query, ok := parseListQuery(c)
	if !ok {
		return
	}

	pageParams := pagination.ParsePageParams(c)
	codes, total, err := h.service.ListMine(c.Request.Context(), actor, query, pageParams)
	if err != nil {
		response.FromError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, codes, pageInfo)
}

// AdminList 物业人员查看本小区的访客码
func (h *VisitorCodeHandler) AdminList(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	query, ok := parseListQuery(c)
	if !ok {
		return
	}

	pageParams := pagination.ParsePageParams(c)
	codes, total, err := h.service.ListForEstate(c.Request.Context(), actor, query, pageParams)
	if err != nil {
		response.FromError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, codes, pageInfo)
}

func parseListQuery(c *gin.Context) (services.VisitorCodeListQuery, bool) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return services.VisitorCodeListQuery{}, false
	}
	return services.VisitorCodeListQuery{
		Status:   models.VisitorCodeStatus(c.Query("status")),
		FromDate: from,
		ToDate:   to,
	}, true
}

// GetByID 访客码详情
func (h *VisitorCodeHandler) GetByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	code, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, code)
}

// Delete 删除已结束的访客码
func (h *VisitorCodeHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Remove(c.Request.Context(), actor, id); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

type transitionFunc func(ctx context.Context, actor services.Actor, id uint) (*models.VisitorCode, error)

func (h *VisitorCodeHandler) transition(c *gin.Context, fn transitionFunc, message string) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	code, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, message, code)
}

// Verify 按ID核验
func (h *VisitorCodeHandler) Verify(c *gin.Context) {
	h.transition(c, h.service.Verify, "核验成功")
}

// Cancel 取消访客码
func (h *VisitorCodeHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel, "取消成功")
}

// TimeIn 登记入场
func (h *VisitorCodeHandler) TimeIn(c *gin.Context) {
	h.transition(c, h.service.SetTimeIn, "入场登记成功")
}

// TimeOut 登记离场
func (h *VisitorCodeHandler) TimeOut(c *gin.Context) {
	h.transition(c, h.service.SetTimeOut, "离场登记成功")
}

// VerifyByCode 门岗输入访客码核验
func (h *VisitorCodeHandler) VerifyByCode(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req VerifyByCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Unprocessable(c, "请输入访客码")
		return
	}

	code, err := h.service.VerifyByCode(c.Request.Context(), actor, req.Code)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "核验成功", code)
}
