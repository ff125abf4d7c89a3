package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   string
	JWTKey string

	DBDriver string
	DBName   string

	// Scheduler cron specs for the settlement tasks
	MovesCron        string
	WithdrawalsCron  string
	AggregationCron  string
	HousekeepingCron string

	// Per-task wall clock budgets in milliseconds. A task stops picking
	// up new entries once its budget is spent; leftovers wait for the
	// next tick.
	MovesBudgetMs       int
	WithdrawalsBudgetMs int
	AggregationBudgetMs int

	// Max pending entries fetched per currency per tick
	WithdrawBatchSize int

	// Aggregate settled moves older than this many months. 0 disables
	// the compactor entirely.
	AggregateMonths int

	EmailSender    string
	Password       string // SMTP Password
	SendGridApiKey string
	AdminEmails    []string
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:   getEnv("PORT", "3000"),
		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		DBDriver: getEnv("DB_DRIVER", "postgres"),
		DBName:   getEnv("DB_NAME", "custodia"),

		MovesCron:        getEnv("MOVES_CRON", "* * * * *"),
		WithdrawalsCron:  getEnv("WITHDRAWALS_CRON", "* * * * *"),
		AggregationCron:  getEnv("AGGREGATION_CRON", "0 3 * * *"),
		HousekeepingCron: getEnv("HOUSEKEEPING_CRON", "*/5 * * * *"),

		MovesBudgetMs:       getEnvInt("MOVES_BUDGET_MS", 10000),
		WithdrawalsBudgetMs: getEnvInt("WITHDRAWALS_BUDGET_MS", 10000),
		AggregationBudgetMs: getEnvInt("AGGREGATION_BUDGET_MS", 30000),

		WithdrawBatchSize: getEnvInt("WITHDRAW_BATCH_SIZE", 100),

		AggregateMonths: getEnvInt("AGGREGATE_MONTHS", 0),

		EmailSender:    getEnv("EMAIL_SENDER", "defaultSecret"),
		Password:       getEnv("PASSWORD", "defaultSecret"),
		SendGridApiKey: getEnv("SENDGRID_API_KEY", ""),
		AdminEmails:    splitList(getEnv("ADMIN_EMAILS", "")),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if len(AppConfig.AdminEmails) == 0 {
		log.Println("Warning: ADMIN_EMAILS is empty. Admin notifications will only be logged.")
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

// splitList splits a comma separated env value, dropping empty items
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
