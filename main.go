package main

import (
	"time"

	"coursepay/config"
	enrollmentControllers "coursepay/controllers/enrollment"
	paymentControllers "coursepay/controllers/payment"
	"coursepay/database"
	"coursepay/gateway"
	"coursepay/ledger"
	enrollmentRoutes "coursepay/routers/enrollmentRoutes"
	paymentRoutes "coursepay/routers/paymentRoutes"
	"coursepay/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"log"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	gwConfig := gateway.Config{
		BaseURL:     config.AppConfig.GatewayApiURL,
		ApiKey:      config.AppConfig.GatewayApiKey,
		MerchantID:  config.AppConfig.GatewayMerchantID,
		SecretKey:   config.AppConfig.GatewaySecretKey,
		CallbackURL: config.AppConfig.GatewayCallbackURL,
		Timeout:     time.Duration(config.AppConfig.GatewayTimeoutSec) * time.Second,
	}
	gw := gateway.NewClient(gwConfig)
	notifier := utils.NewNotifier()

	l := ledger.New(database.Database.Db, gw, gwConfig, notifier, nil)
	enrollmentControllers.Ledger = l
	paymentControllers.Ledger = l

	utils.InitializeReconcileScheduler(l, gw)

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

	enrollmentRoutes.SetupEnrollmentRoutes(app)
	paymentRoutes.SetupPaymentRoutes(app)

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
