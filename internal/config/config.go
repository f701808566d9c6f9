package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey   string
	LanguageAPIKey string
	DatabaseURL    string
	HTTPPort       string
	LogLevel       string
	JWTSecret      string
	RedisURL       string
	SMTPAddr       string
	SMTPUsername   string
	SMTPPassword   string
	AlertFrom      string
	AlertTo        string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		LanguageAPIKey: getEnv("LANGUAGE_API_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", "toymart.db"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		SMTPAddr:       getEnv("SMTP_ADDR", ""),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		AlertFrom:      getEnv("ALERT_FROM", ""),
		AlertTo:        getEnv("ALERT_TO", ""),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
