package ledgerRoutes

import (
	ledgerController "custodia/controllers/ledger"
	"custodia/middleware"
	ledgerValidator "custodia/validators/ledger"

	"github.com/gofiber/fiber/v2"
)

func SetupLedgerRoutes(app *fiber.App) {
	ledgerGroup := app.Group("/ledger")

	// User routes
	ledgerGroup.Get("/balance", middleware.JWTMiddleware, ledgerController.GetBalance)
	ledgerGroup.Get("/history", middleware.JWTMiddleware, ledgerController.GetHistory)
	ledgerGroup.Post("/withdraw", ledgerValidator.Withdrawal(), middleware.JWTMiddleware, ledgerController.SubmitWithdrawal)
	ledgerGroup.Post("/move", ledgerValidator.Move(), middleware.JWTMiddleware, ledgerController.SubmitMove)

	// Admin routes
	adminGroup := ledgerGroup.Group("/admin")
	adminGroup.Get("/pending-stats", middleware.JWTMiddleware, ledgerController.GetPendingStats)
	adminGroup.Post("/run/:task", middleware.JWTMiddleware, ledgerController.RunTask)
	adminGroup.Post("/cancel/:id", middleware.JWTMiddleware, ledgerController.CancelTransaction)
}
