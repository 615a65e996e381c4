package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   string
	DBName string
	JWTKey string

	EmailSender string
	SendGridKey string

	GatewayApiURL      string // Payment gateway base URL
	GatewayApiKey      string // Merchant API key
	GatewayMerchantID  string // Merchant/member identifier
	GatewaySecretKey   string // Shared secret for request/callback hashes
	GatewayCallbackURL string // Public URL the gateway posts results to

	GatewayTimeoutSec int // Outbound gateway call timeout
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	// Initialize AppConfig with values from environment variables
	AppConfig = &Config{
		Port:   getEnv("PORT", "3000"),
		DBName: getEnv("DB_NAME", "coursepay"),
		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		EmailSender: getEnv("EMAIL_SENDER", "noreply@coursepay.io"),
		SendGridKey: getEnv("SENDGRID_API_KEY", ""),

		GatewayApiURL:      getEnv("GATEWAY_API_URL", "https://api.payletter.kr/v1"),
		GatewayApiKey:      getEnv("GATEWAY_API_KEY", "defaultSecret"),
		GatewayMerchantID:  getEnv("GATEWAY_MERCHANT_ID", "coursepay"),
		GatewaySecretKey:   getEnv("GATEWAY_SECRET_KEY", "defaultSecret"),
		GatewayCallbackURL: getEnv("GATEWAY_CALLBACK_URL", "http://localhost:3000/payment/callback"),

		GatewayTimeoutSec: getEnvInt("GATEWAY_TIMEOUT_SEC", 30),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.GatewaySecretKey == "defaultSecret" {
		log.Println("Warning: Using default GATEWAY_SECRET_KEY. Gateway hashes will not verify in production.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}
