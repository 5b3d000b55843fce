package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sudo-init-do/gigbridge/internal/admin"
	"github.com/sudo-init-do/gigbridge/internal/alerts"
	"github.com/sudo-init-do/gigbridge/internal/auth"
	"github.com/sudo-init-do/gigbridge/internal/db"
	"github.com/sudo-init-do/gigbridge/internal/escrow"
	"github.com/sudo-init-do/gigbridge/internal/marketplace"
	appmw "github.com/sudo-init-do/gigbridge/internal/middleware"
	"github.com/sudo-init-do/gigbridge/internal/user"
	"github.com/sudo-init-do/gigbridge/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	// Init subsystems
	db.Init()
	alerts.Init()
	defer alerts.Close()

	// Stores and services
	walletStore := wallet.NewPostgresStore(db.Conn)
	ledger := wallet.NewLedger(walletStore)

	marketStore := marketplace.NewPostgresStore(db.Conn)
	coordinator := escrow.NewCoordinator(ledger, marketplace.NewEscrowSource(marketStore))
	market := marketplace.NewService(marketStore, coordinator)

	wh := wallet.NewHandler(ledger)
	mh := marketplace.NewHandler(market)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/ready", func(c echo.Context) error {
		if db.Conn == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		if err := db.Conn.Ping(context.Background()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public auth routes with per-IP rate limiting to protect signup/login from abuse
	authLimit := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20))
	e.POST("/signup", auth.Signup, authLimit)
	e.POST("/login", auth.Login, authLimit)
	e.POST("/admin/bootstrap", auth.BootstrapAdmin, authLimit)
	e.GET("/user/:id/profile", user.GetPublicProfile)

	// Authenticated group
	g := e.Group("")
	g.Use(appmw.JWTMiddleware)

	g.GET("/me", auth.Me)
	g.PATCH("/user/profile", user.UpdateProfile)

	// Wallet
	g.GET("/wallet/balance", wh.Balance)
	g.POST("/wallet/recharge", wh.Recharge)
	g.POST("/wallet/withdraw", wh.Withdraw)
	g.GET("/wallet/transactions", wh.Transactions)
	g.GET("/wallet/orders/:id/transactions", wh.OrderTransactions)

	// Projects and bids
	g.POST("/marketplace/projects", mh.CreateProject, appmw.RequireRoles("employer"))
	e.GET("/marketplace/projects/:id", mh.GetProject) // public discovery
	g.POST("/marketplace/projects/:id/bids", mh.CreateBid, appmw.RequireRoles("developer"))
	g.GET("/marketplace/projects/:id/bids", mh.ProjectBids)
	g.PATCH("/marketplace/bids/:id", mh.UpdateBid, appmw.RequireRoles("developer"))
	g.POST("/marketplace/bids/:id/withdraw", mh.WithdrawBid, appmw.RequireRoles("developer"))
	g.POST("/marketplace/bids/:id/accept", mh.AcceptBid, appmw.RequireRoles("employer"))
	g.POST("/marketplace/bids/:id/reject", mh.RejectBid, appmw.RequireRoles("employer"))
	g.POST("/marketplace/bids/:id/order", mh.CreateOrderFromBid, appmw.RequireRoles("employer"))

	// Orders
	g.GET("/marketplace/orders", mh.MyOrders)
	g.GET("/marketplace/orders/:id", mh.GetOrder)
	g.GET("/marketplace/orders/no/:no", mh.GetOrderByNo)
	g.POST("/marketplace/orders/:id/pay", mh.ConfirmPayment, appmw.RequireRoles("employer"))
	g.POST("/marketplace/orders/:id/cancel", mh.CancelOrder, appmw.RequireRoles("employer"))
	g.POST("/marketplace/orders/:id/milestones", mh.AddMilestone, appmw.RequireRoles("employer"))
	g.GET("/marketplace/orders/:id/milestones", mh.OrderMilestones)
	g.POST("/marketplace/orders/:id/complete", mh.CompleteOrder, appmw.RequireRoles("employer"))

	// Milestones
	g.POST("/marketplace/milestones/:id/start", mh.StartMilestone, appmw.RequireRoles("developer"))
	g.POST("/marketplace/milestones/:id/submit", mh.SubmitMilestone, appmw.RequireRoles("developer"))
	g.POST("/marketplace/milestones/:id/review", mh.ReviewMilestone, appmw.RequireRoles("employer"))

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(appmw.JWTMiddleware)
	adminGroup.Use(appmw.AdminGuard)
	adminGroup.GET("/users", admin.ListUsers)
	adminGroup.POST("/users/:id/suspend", admin.SuspendUser)
	adminGroup.POST("/users/:id/activate", admin.ActivateUser)
	adminGroup.GET("/withdrawals", wh.ListPendingWithdrawals)
	adminGroup.POST("/withdrawals/:id/review", wh.ReviewWithdrawal)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("API server listening on :%s", port)
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
