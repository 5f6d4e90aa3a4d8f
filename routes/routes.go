package routes

import (
	"net/http"

	"backoffice/controllers"
	"backoffice/handlers"
	"backoffice/middleware"
	"backoffice/models"
	"backoffice/services"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Controller      *controllers.Controller
	Public          *handlers.Public
	Auth            *services.AuthService
	PublicRateLimit gin.HandlerFunc
	MetricsIPs      []string
}

func InitializeRoutes(router *gin.Engine, d Deps) {
	ctl := d.Controller

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", middleware.MetricsHandler(d.MetricsIPs))
	router.POST("/login", ctl.Login)
	router.POST("/logout", middleware.AuthMiddleware(d.Auth), ctl.Logout)

	public := router.Group("/public")
	if d.PublicRateLimit != nil {
		public.Use(d.PublicRateLimit)
	}
	{
		public.POST("/owners/:ownerId/request-orders", d.Public.SubmitRequestOrder)
		public.GET("/request-orders/:token", d.Public.GetRequestOrderByToken)
		public.GET("/catalog", d.Public.ListCatalog)
		public.GET("/categories", d.Public.ListCategories)
	}

	staff := router.Group("/staff")
	staff.Use(middleware.AuthMiddleware(d.Auth, models.RoleAdmin, models.RoleEmployee))
	{
		staff.GET("/products", ctl.ListProducts)
		staff.POST("/products", ctl.CreateProduct)
		staff.GET("/products/:id", ctl.GetProduct)
		staff.PUT("/products/:id", ctl.UpdateProduct)
		staff.POST("/products/:id/restock", ctl.Restock)
		staff.GET("/products/:id/history", ctl.StockHistory)
		staff.GET("/products/:id/reconcile", ctl.ReconcileStock)
		staff.GET("/stock/summary", ctl.StockSummary)
		staff.GET("/categories", ctl.ListCategories)

		staff.GET("/orders", ctl.ListOrders)
		staff.POST("/orders", ctl.CreateOrder)
		staff.GET("/orders/:id", ctl.GetOrder)
		staff.PUT("/orders/:id/lines", ctl.ReplaceOrderLines)
		staff.POST("/orders/:id/paid", ctl.MarkOrderPaid)
		staff.POST("/orders/:id/unpaid", ctl.MarkOrderUnpaid)

		staff.GET("/request-orders", ctl.ListRequestOrders)
		staff.GET("/request-orders/:id", ctl.GetRequestOrder)
		staff.POST("/request-orders/:id/confirm", ctl.ConfirmRequestOrder)
		staff.POST("/request-orders/:id/reject", ctl.RejectRequestOrder)

		staff.GET("/invoices", ctl.ListInvoices)
		staff.POST("/invoices", ctl.CreateInvoice)
		staff.GET("/invoices/:id", ctl.GetInvoice)

		staff.GET("/customers", ctl.ListCustomers)
		staff.POST("/customers", ctl.CreateCustomer)
		staff.GET("/customers/:id", ctl.GetCustomer)
		staff.PUT("/customers/:id", ctl.UpdateCustomer)
		staff.DELETE("/customers/:id", ctl.DeleteCustomer)

		staff.GET("/sales", ctl.ListSales)
		staff.GET("/reports/sales", ctl.GetSalesReport)
		staff.GET("/dashboard", ctl.GetDashboard)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Auth, models.RoleAdmin))
	{
		admin.DELETE("/products/:id", ctl.DeleteProduct)
		admin.POST("/products/:id/writeoff", ctl.WriteOffStock)
		admin.POST("/orders/:id/cancel", ctl.CancelOrder)
		admin.DELETE("/orders/:id", ctl.DeleteOrder)

		admin.GET("/users", ctl.ListUsers)
		admin.POST("/users", ctl.RegisterUser)
		admin.GET("/audit", ctl.ListAudit)
		admin.GET("/activity", ctl.ListActivity)
	}
}
