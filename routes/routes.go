package routes

import (
	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/controllers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)
	uc := controllers.GetUserController(a.Services.Users, s.Log)

	authMW := app.AuthRequired(a.AppSessions(), a.Services.Auth, a.Log)
	adminMW := app.AdminOnly()
	seenMW := app.TouchLastSeen(a.AppSessions(), a.UoW.Users(), a.Config.LastSeenThrottle, a.Log)

	r.GET("/healthz", s.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// everything below changes state through cookies, so origins are checked
	api := r.Group("", app.CSRF(a.AllowedOrigins()))

	// ------------------------------
	// password auth
	// ------------------------------
	auth := api.Group("/api/auth")
	{
		auth.POST("/register", s.Register)
		auth.POST("/login", s.Login)
	}
	authed := auth.Group("", authMW, seenMW)
	{
		authed.POST("/logout", s.Logout)
		authed.GET("/me", s.Me)
	}

	// ------------------------------
	// passkeys
	// ------------------------------
	wa := api.Group("/webauthn")
	{
		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	creds := api.Group("/api/credentials", authMW, seenMW)
	{
		creds.GET("", s.ListCredentials)
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// items
	// ------------------------------
	items := api.Group("/api/items", authMW, seenMW)
	{
		items.GET("", s.ListItems) // ?search=&category=&status=&sortBy=&sortOrder=&page=&pageSize=
		items.GET("/categories", s.ItemCategories)
		items.GET("/:id", s.GetItem)
		items.GET("/:id/availability", s.ItemAvailability)
		items.GET("/:id/loans", adminMW, s.ActiveLoansForItem)

		items.POST("", adminMW, s.CreateItem)
		items.PUT("/:id", adminMW, s.UpdateItem)
		items.DELETE("/:id", adminMW, s.DeleteItem)
	}

	// ------------------------------
	// loans
	// ------------------------------
	loans := api.Group("/api/loans", authMW, seenMW)
	{
		loans.POST("", s.CreateLoan)
		loans.GET("", s.ListLoans) // ?status=
		loans.GET("/mine", s.MyLoans)
		loans.GET("/pending", adminMW, s.PendingLoans)
		loans.GET("/overdue", adminMW, s.OverdueLoans)
		loans.GET("/:id", s.GetLoan)

		loans.POST("/:id/decision", adminMW, s.DecideLoan)
		loans.POST("/:id/deliver", adminMW, s.DeliverLoan)
		loans.POST("/:id/return", s.ReturnLoan)
	}

	// ------------------------------
	// administration
	// ------------------------------
	users := api.Group("/api/users", authMW, seenMW, adminMW)
	{
		users.GET("", uc.ListUsers) // ?roleId=
		users.POST("", uc.CreateUser)
		users.GET("/:id", uc.GetUser)
		users.PUT("/:id", uc.UpdateUser)
		users.DELETE("/:id", uc.DeleteUser)
		users.PUT("/:id/role", uc.ChangeRole)
		users.PUT("/:id/active", uc.SetActive)
	}

	roles := api.Group("/api/roles", authMW, seenMW, adminMW)
	{
		roles.GET("", uc.ListRoles)
		roles.POST("", uc.CreateRole)
		roles.DELETE("/:id", uc.DeleteRole)
	}

	audit := api.Group("/api/audit", authMW, seenMW, adminMW)
	{
		audit.GET("", s.SystemActivity) // ?from=&to=
		audit.GET("/user", s.UserActivity)
		audit.GET("/entity/:table/:key", s.EntityHistory)
	}

	reports := api.Group("/api/reports", authMW, seenMW, adminMW)
	{
		reports.GET("/items", s.ItemsReport)
		reports.GET("/inventory", s.InventoryReport)
		reports.GET("/loans", s.LoansReport)
		reports.GET("/activity", s.ActivityReport) // ?from=&to=
	}

	api.GET("/api/dashboard", authMW, seenMW, adminMW, s.Dashboard)
}
