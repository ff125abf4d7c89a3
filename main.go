package main

import (
	"custodia/adapters"
	"custodia/config"
	ledgerController "custodia/controllers/ledger"
	"custodia/database"
	ledgerRoutes "custodia/routers/ledgerRoutes"
	"custodia/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"log"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	registry := adapters.NewRegistry()
	eng := utils.NewEngine(registry)
	ledgerController.Engine = eng

	scheduler := utils.InitializeSettlementSchedulers(eng)
	defer scheduler.Stop()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	ledgerRoutes.SetupLedgerRoutes(app)

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
