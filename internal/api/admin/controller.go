package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/loaders"
	"github.com/Conversly/whatsapp-faq-bot/internal/types"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

type Controller struct {
	svc *Service
}

func NewController(svc *Service) *Controller {
	return &Controller{svc: svc}
}

func (c *Controller) fail(ctx *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, ErrInvalidInput):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, loaders.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, loaders.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, ErrEmbedding):
		status, code = http.StatusBadGateway, "embedding_failed"
	}

	if status >= http.StatusInternalServerError {
		utils.Zlog.Error("admin request failed",
			zap.String("path", ctx.FullPath()),
			zap.Error(err))
	} else {
		utils.Zlog.Warn("admin request rejected",
			zap.String("path", ctx.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}

	ctx.JSON(status, gin.H{
		"error":     code,
		"message":   err.Error(),
		"timestamp": time.Now().UTC(),
	})
}

func (c *Controller) ok(ctx *gin.Context, status int, data interface{}) {
	res := DataResponse{BaseResponse: types.BaseResponse{Success: true}, Data: data}
	if idVal, exists := ctx.Get("request_id"); exists {
		if rid, ok := idVal.(string); ok {
			res.RequestID = rid
		}
	}
	ctx.JSON(status, res)
}

func (c *Controller) bind(ctx *gin.Context, dst interface{}) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		c.fail(ctx, errors.Join(ErrInvalidInput, err))
		return false
	}
	return true
}

func faqID(ctx *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("faqId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(ErrInvalidInput, errors.New("faqId must be a positive integer"))
	}
	return id, nil
}

// Tenants

func (c *Controller) CreateTenant(ctx *gin.Context) {
	var req TenantRequest
	if !c.bind(ctx, &req) {
		return
	}
	t, err := c.svc.CreateTenant(ctx.Request.Context(), &req)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusCreated, t)
}

func (c *Controller) ListTenants(ctx *gin.Context) {
	includeInactive := ctx.Query("include_inactive") == "true"
	tenants, err := c.svc.ListTenants(ctx.Request.Context(), includeInactive)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, tenants)
}

func (c *Controller) GetTenant(ctx *gin.Context) {
	t, err := c.svc.GetTenant(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, t)
}

func (c *Controller) UpdateTenant(ctx *gin.Context) {
	var req TenantRequest
	if !c.bind(ctx, &req) {
		return
	}
	t, err := c.svc.UpdateTenant(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, t)
}

func (c *Controller) DeleteTenant(ctx *gin.Context) {
	if err := c.svc.DeleteTenant(ctx.Request.Context(), ctx.Param("id")); err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, nil)
}

// FAQs

func (c *Controller) CreateFAQ(ctx *gin.Context) {
	c.createFAQ(ctx, ctx.Param("id"))
}

func (c *Controller) CreateSharedFAQ(ctx *gin.Context) {
	c.createFAQ(ctx, "")
}

func (c *Controller) createFAQ(ctx *gin.Context, tenantID string) {
	var req FAQRequest
	if !c.bind(ctx, &req) {
		return
	}
	f, err := c.svc.CreateFAQ(ctx.Request.Context(), tenantID, &req)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusCreated, f)
}

func (c *Controller) ListFAQs(ctx *gin.Context) {
	c.listFAQs(ctx, ctx.Param("id"))
}

func (c *Controller) ListSharedFAQs(ctx *gin.Context) {
	c.listFAQs(ctx, "")
}

func (c *Controller) listFAQs(ctx *gin.Context, tenantID string) {
	faqs, err := c.svc.ListFAQs(ctx.Request.Context(), tenantID)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, faqs)
}

func (c *Controller) UpdateFAQ(ctx *gin.Context) {
	id, err := faqID(ctx)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	var req FAQRequest
	if !c.bind(ctx, &req) {
		return
	}
	res, err := c.svc.UpdateFAQ(ctx.Request.Context(), id, &req)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, res)
}

func (c *Controller) DeleteFAQ(ctx *gin.Context) {
	id, err := faqID(ctx)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	if err := c.svc.DeleteFAQ(ctx.Request.Context(), id); err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, nil)
}

// Conversations

func (c *Controller) ListConversations(ctx *gin.Context) {
	out, err := c.svc.ListConversations(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, out)
}

func (c *Controller) GetThread(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.fail(ctx, errors.Join(ErrInvalidInput, errors.New("limit must be an integer")))
			return
		}
		limit = n
	}
	out, err := c.svc.GetThread(ctx.Request.Context(), ctx.Param("id"), ctx.Param("waId"), limit)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, out)
}

func (c *Controller) Stats(ctx *gin.Context) {
	stats, err := c.svc.Stats(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, stats)
}

func (c *Controller) HideConversation(ctx *gin.Context) {
	hidden, err := c.svc.HideConversation(ctx.Request.Context(), ctx.Param("id"), ctx.Param("waId"))
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.ok(ctx, http.StatusOK, gin.H{"hidden": hidden})
}
