package ledgerController

import (
	"custodia/database"
	"custodia/engine"
	"custodia/middleware"
	"custodia/models"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Engine is wired by main at startup and used for the admin run-now
// endpoint. The read endpoints below go straight to the ledger store.
var Engine *engine.Engine

// settledBalance sums a user's settled entries for a currency
func settledBalance(userID, currencyID uint) int64 {
	var total int64
	database.Database.Db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount + fee), 0)").
		Where("user_id = ? AND currency_id = ? AND status = ?", userID, currencyID, models.StatusDone).
		Scan(&total)
	return total
}

// GetBalance returns the user's settled balance for every currency
func GetBalance(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var currencies []models.Currency
	if err := database.Database.Db.Where("is_deleted = false").Order("id asc").Find(&currencies).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch currencies!", nil)
	}

	balances := make([]fiber.Map, 0, len(currencies))
	for _, currency := range currencies {
		balances = append(balances, fiber.Map{
			"currency": currency.Symbol,
			"decimals": currency.Decimals,
			"balance":  settledBalance(userId, currency.ID),
		})
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Balances fetched!", fiber.Map{
		"balances": balances,
	})
}

// GetHistory returns the user's ledger entries, newest first
func GetHistory(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	category := c.Query("category")

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	offset := (page - 1) * limit
	db := database.Database.Db

	query := db.Model(&models.Transaction{}).Where("user_id = ?", userId)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	query.Count(&total)

	var transactions []models.Transaction
	if err := query.
		Order("timestamp DESC").
		Offset(offset).
		Limit(limit).
		Find(&transactions).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch history!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Ledger history fetched!", fiber.Map{
		"transactions": transactions,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// SubmitWithdrawal creates a pending withdrawal entry. Settlement
// happens asynchronously on the next withdrawals tick.
func SubmitWithdrawal(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedWithdrawal").(*WithdrawalRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db

	var currency models.Currency
	if err := db.Where("symbol = ? AND is_deleted = false", reqData.Currency).First(&currency).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Currency not found!", nil)
	}

	var address models.Address
	if err := db.Where("id = ? AND user_id = ? AND currency_id = ? AND type = ? AND is_deleted = false",
		reqData.AddressID, userId, currency.ID, models.AddressWithdrawal).First(&address).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Withdrawal address not found!", nil)
	}

	if reqData.Amount < currency.MinWithdraw {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Amount is below the minimum withdrawal!", nil)
	}

	fee := currency.FeeWithdrawSiteFlat
	if settledBalance(userId, currency.ID) < reqData.Amount+fee {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Insufficient balance!", nil)
	}

	entry := models.Transaction{
		Category:   models.CategoryWithdrawal,
		UserID:     userId,
		CurrencyID: currency.ID,
		Amount:     -reqData.Amount,
		Fee:        -fee,
		Status:     models.StatusPending,
		AddressID:  address.ID,
		Comment:    reqData.Comment,
		Timestamp:  time.Now().UTC(),
	}
	if err := db.Create(&entry).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create withdrawal!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Withdrawal queued!", fiber.Map{
		"transactionId": entry.ID,
		"amount":        entry.Amount,
		"fee":           entry.Fee,
		"status":        entry.Status,
	})
}

// SubmitMove creates a linked debit/credit pair for an internal
// transfer. The recipient's credit carries the full amount; the fee is
// carved out of the sender's debit so the pair sums to zero.
func SubmitMove(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedMove").(*MoveRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	if reqData.ToUserID == userId {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Cannot move funds to yourself!", nil)
	}

	db := database.Database.Db

	var recipient models.User
	if err := db.Where("id = ? AND is_deleted = false", reqData.ToUserID).First(&recipient).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Recipient not found!", nil)
	}

	var currency models.Currency
	if err := db.Where("symbol = ? AND is_deleted = false", reqData.Currency).First(&currency).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Currency not found!", nil)
	}

	fee := currency.FeeMoveSiteFlat + int64(float64(reqData.Amount)*currency.FeeMoveSiteProportional)
	if fee >= reqData.Amount {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Amount does not cover the transfer fee!", nil)
	}

	if settledBalance(userId, currency.ID) < reqData.Amount {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Insufficient balance!", nil)
	}

	now := time.Now().UTC()

	// The pair is created credit first; the debit references it via
	// ParentID. debit.amount + debit.fee + credit.amount == 0.
	tx := db.Begin()

	credit := models.Transaction{
		Category:   models.CategoryMove,
		UserID:     recipient.ID,
		CurrencyID: currency.ID,
		Amount:     reqData.Amount,
		Status:     models.StatusPending,
		Comment:    reqData.Comment,
		Timestamp:  now,
	}
	if err := tx.Create(&credit).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create transfer!", nil)
	}

	debit := models.Transaction{
		Category:   models.CategoryMove,
		UserID:     userId,
		CurrencyID: currency.ID,
		Amount:     -(reqData.Amount - fee),
		Fee:        -fee,
		Status:     models.StatusPending,
		Comment:    reqData.Comment,
		Timestamp:  now,
		ParentID:   credit.ID,
	}
	if err := tx.Create(&debit).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create transfer!", nil)
	}

	tx.Commit()

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Transfer queued!", fiber.Map{
		"debitId":  debit.ID,
		"creditId": credit.ID,
		"amount":   reqData.Amount,
		"fee":      fee,
		"status":   debit.Status,
	})
}

// requireAdmin loads the caller and checks the admin role
func requireAdmin(c *fiber.Ctx) (*models.User, bool) {
	userId := c.Locals("userId").(uint)

	var admin models.User
	err := database.Database.Db.
		Where("id = ? AND is_deleted = false AND role = ?", userId, "ADMIN").
		First(&admin).Error
	return &admin, err == nil
}

// GetPendingStats returns per-currency pending counts and demand (Admin only)
func GetPendingStats(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	db := database.Database.Db

	var stats []struct {
		CurrencyID uint
		Category   string
		Count      int64
		Demand     int64
	}
	err := db.Model(&models.Transaction{}).
		Select("currency_id, category, COUNT(*) AS count, COALESCE(SUM(-(amount + fee)), 0) AS demand").
		Where("status = ?", models.StatusPending).
		Group("currency_id, category").
		Scan(&stats).Error
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch stats!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Pending stats fetched!", fiber.Map{
		"pending": stats,
	})
}

// RunTask triggers one settlement task outside its schedule (Admin only)
func RunTask(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}
	if Engine == nil {
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Settlement engine not running!", nil)
	}

	task := c.Params("task")
	switch task {
	case "moves":
		Engine.RunMoves()
	case "withdrawals":
		Engine.RunWithdrawals()
	case "aggregation":
		Engine.RunAggregation()
	case "housekeeping":
		Engine.RunHousekeeping()
	default:
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Unknown task!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Task executed!", fiber.Map{
		"task": task,
	})
}

// CancelTransaction cancels a pending entry (Admin only). This is the
// one operator-driven transition; the engine itself never cancels.
func CancelTransaction(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid transaction id!", nil)
	}

	db := database.Database.Db

	var entry models.Transaction
	if err := db.First(&entry, id).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Transaction not found!", nil)
	}
	if entry.Status != models.StatusPending {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Only pending transactions can be cancelled!", nil)
	}

	tx := db.Begin()

	if err := tx.Model(&models.Transaction{}).Where("id = ?", entry.ID).
		Update("status", models.StatusCancelled).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to cancel transaction!", nil)
	}

	// A move pair is cancelled as a unit
	if entry.Category == models.CategoryMove {
		pairQuery := tx.Model(&models.Transaction{})
		if entry.ParentID != 0 {
			pairQuery = pairQuery.Where("id = ?", entry.ParentID)
		} else {
			pairQuery = pairQuery.Where("parent_id = ?", entry.ID)
		}
		if err := pairQuery.Update("status", models.StatusCancelled).Error; err != nil {
			tx.Rollback()
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to cancel paired entry!", nil)
		}
	}

	tx.Commit()

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Transaction cancelled!", fiber.Map{
		"transactionId": entry.ID,
	})
}
