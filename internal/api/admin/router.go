package admin

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the admin API under /admin behind the given
// middleware (authentication and rate limiting).
func RegisterRoutes(router gin.IRouter, svc *Service, middleware ...gin.HandlerFunc) {
	ctrl := NewController(svc)

	admin := router.Group("/admin", middleware...)
	{
		admin.POST("/tenants", ctrl.CreateTenant)
		admin.GET("/tenants", ctrl.ListTenants)
		admin.GET("/tenants/:id", ctrl.GetTenant)
		admin.PUT("/tenants/:id", ctrl.UpdateTenant)
		admin.DELETE("/tenants/:id", ctrl.DeleteTenant)

		admin.POST("/tenants/:id/faqs", ctrl.CreateFAQ)
		admin.GET("/tenants/:id/faqs", ctrl.ListFAQs)
		admin.PUT("/faqs/:faqId", ctrl.UpdateFAQ)
		admin.DELETE("/faqs/:faqId", ctrl.DeleteFAQ)
		admin.POST("/shared/faqs", ctrl.CreateSharedFAQ)
		admin.GET("/shared/faqs", ctrl.ListSharedFAQs)

		admin.GET("/tenants/:id/conversations", ctrl.ListConversations)
		admin.GET("/tenants/:id/conversations/:waId", ctrl.GetThread)
		admin.DELETE("/tenants/:id/conversations/:waId", ctrl.HideConversation)
		admin.GET("/tenants/:id/stats", ctrl.Stats)
	}
}
