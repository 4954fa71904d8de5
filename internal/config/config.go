package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For job intervals

	"passport_studio/internal/service" // Pricing policy
	"passport_studio/internal/storage" // Object storage settings

	"github.com/joho/godotenv" // For loading .env files
)

// Store drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	AppPort     string // Application port
	IsProd      bool   // Is production environment
	JWTSecret   string // JWT secret key
	StoreDriver string // mysql, postgres or memory
	DBUser      string // Database user
	DBPassword  string // Database password
	DBHost      string // Database host
	DBPort      string // Database port
	DBName      string // Database name
	DatabaseURL string // Full postgres DSN, wins over the DB_* parts
	MemoryPath  string // Snapshot file of the memory driver, empty keeps data in RAM
	RedisAddr   string // Redis server address, empty disables cache and pub/sub
	RedisPass   string // Redis password
	RedisDB     int    // Redis database number

	GenAIAPIKey     string // Image model API key
	GenAIImageModel string // Model used for photo edits
	GenAITextModel  string // Model used for face analysis and the assistant

	S3 storage.S3Config // Bucket for generated photos, empty bucket stores them inline

	TelegramToken  string // Bot token of the siren sink
	TelegramChatID int64  // Chat that receives siren alerts

	GenerationCost    int64         // Price of one paid generation session
	WelcomeBonus      int64         // Credit granted to new customers
	MinRecharge       int64         // Smallest recharge accepted
	PaymentNumber     string        // Wallet number customers send money to
	GalleryMaxImages  int64         // Gallery quota, 0 for unlimited
	SirenInterval     time.Duration // How often the siren polls the dashboard
	RetentionInterval time.Duration // How often the gallery is trimmed

	AdminUsername string // Operator seeded by the migrate command
	AdminPassword string // Password of the seeded operator
	AdminName     string // Display name of the seeded operator
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		IsProd:      os.Getenv("IS_PROD") == "true",
		JWTSecret:   os.Getenv("JWT_SECRET"),
		StoreDriver: getEnv("STORE_DRIVER", DriverMySQL),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBHost:      getEnv("DB_HOST", "127.0.0.1"),
		DBPort:      os.Getenv("DB_PORT"),
		DBName:      getEnv("DB_NAME", "passport_studio"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		MemoryPath:  os.Getenv("MEMORY_PATH"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   os.Getenv("REDIS_PASS"),
		RedisDB:     getInt("REDIS_DB", 0),

		GenAIAPIKey:     os.Getenv("GENAI_API_KEY"),
		GenAIImageModel: os.Getenv("GENAI_IMAGE_MODEL"), // Empty picks the adapter default
		GenAITextModel:  os.Getenv("GENAI_TEXT_MODEL"),

		S3: storage.S3Config{
			Bucket:        os.Getenv("S3_BUCKET"),
			Region:        getEnv("S3_REGION", "auto"),
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		},

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: getInt64("TELEGRAM_ADMIN_CHAT_ID", 0),

		GenerationCost:    int64(getInt("GENERATION_COST", int(service.DefaultPolicy.GenerationCost))),
		WelcomeBonus:      int64(getInt("WELCOME_BONUS", int(service.DefaultPolicy.WelcomeBonus))),
		MinRecharge:       int64(getInt("MIN_RECHARGE", int(service.DefaultPolicy.MinRecharge))),
		PaymentNumber:     getEnv("PAYMENT_NUMBER", service.DefaultPolicy.PaymentNumber),
		GalleryMaxImages:  int64(getInt("GALLERY_MAX_IMAGES", 500)),
		SirenInterval:     getDuration("SIREN_INTERVAL", 5*time.Second),
		RetentionInterval: getDuration("RETENTION_INTERVAL", time.Hour),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}
}

// Policy returns the pricing rules the services enforce
func (c *Config) Policy() service.Policy {
	return service.Policy{
		GenerationCost: c.GenerationCost,
		WelcomeBonus:   c.WelcomeBonus,
		MinRecharge:    c.MinRecharge,
		PaymentNumber:  c.PaymentNumber,
	}
}

// MySQLDSN builds the go-sql-driver DSN from the DB_* parts
func (c *Config) MySQLDSN() string {
	port := c.DBPort
	if port == "" {
		port = "3306"
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + port + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

// PostgresDSN returns DATABASE_URL or a key/value DSN built from the DB_* parts
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	port := c.DBPort
	if port == "" {
		port = "5432"
	}
	return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
		" dbname=" + c.DBName + " port=" + port + " sslmode=disable"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback // Unset or malformed
	}
	return n
}

func getInt64(key string, fallback int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}
