package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/velmark/shopapi/internal/models"
)

type Config struct {
	DB_HOST          string
	DB_PORT          string
	DB_USER          string
	DB_PASSWORD      string
	DB_NAME          string
	ES_URL           string
	ES_USER          string
	ES_PASSWORD      string
	SESSION_SECRET   string
	STRIPE_SECRET    string
	SENDGRID_API_KEY string
	MAIL_FROM        string
	FRONTEND_URL     string
	KAFKA_ADDRESS    string
	LOG_LEVEL        string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:          os.Getenv("DB_HOST"),
		DB_PORT:          os.Getenv("DB_PORT"),
		DB_USER:          os.Getenv("DB_USER"),
		DB_PASSWORD:      os.Getenv("DB_PASSWORD"),
		DB_NAME:          os.Getenv("DB_NAME"),
		ES_URL:           os.Getenv("ES_URL"),
		ES_USER:          os.Getenv("ES_USER"),
		ES_PASSWORD:      os.Getenv("ES_PASSWORD"),
		SESSION_SECRET:   os.Getenv("SESSION_SECRET"),
		STRIPE_SECRET:    os.Getenv("STRIPE_SECRET"),
		SENDGRID_API_KEY: os.Getenv("SENDGRID_API_KEY"),
		MAIL_FROM:        os.Getenv("MAIL_FROM"),
		FRONTEND_URL:     os.Getenv("FRONTEND_URL"),
		KAFKA_ADDRESS:    os.Getenv("KAFKA_ADDRESS"),
		LOG_LEVEL:        os.Getenv("LOG_LEVEL"),
	}

	// Every session in a deployment is signed with this one secret; refusing
	// to start without it beats minting unverifiable cookies.
	if config.SESSION_SECRET == "" {
		return nil, fmt.Errorf("missing required env SESSION_SECRET")
	}

	return config, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}
