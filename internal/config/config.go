package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Email struct {
		SMTPServer    string
		SMTPPort      int
		Username      string
		Password      string
		FromName      string
		RatePerSecond int
	}
	Telegram struct {
		BotToken  string
		OpsChatID int64
	}
	API struct {
		Port     string
		BasePath string
	}
	Alerts struct {
		CheckInterval   time.Duration
		SLAWindow       time.Duration
		QueueSize       int
		AlertWorkers    int
		DispatchWorkers int
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")
	if r, err := strconv.Atoi(os.Getenv("EMAIL_RATE_PER_SECOND")); err == nil {
		cfg.Email.RatePerSecond = r
	}

	// Telegram operator channel
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_OPS_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.OpsChatID = id
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Alert engine settings
	if d, err := time.ParseDuration(os.Getenv("ALERT_CHECK_INTERVAL")); err == nil {
		cfg.Alerts.CheckInterval = d
	}
	if d, err := time.ParseDuration(os.Getenv("ALERT_SLA_WINDOW")); err == nil {
		cfg.Alerts.SLAWindow = d
	}
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Alerts.QueueSize = qs
	}
	if w, err := strconv.Atoi(os.Getenv("ALERT_WORKERS")); err == nil {
		cfg.Alerts.AlertWorkers = w
	}
	if w, err := strconv.Atoi(os.Getenv("DISPATCH_WORKERS")); err == nil {
		cfg.Alerts.DispatchWorkers = w
	}

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "flight_request_status"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "flight-alert-service"
	}
	if cfg.Email.RatePerSecond == 0 {
		cfg.Email.RatePerSecond = 5
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Alerts.CheckInterval == 0 {
		cfg.Alerts.CheckInterval = 5 * time.Minute
	}
	if cfg.Alerts.SLAWindow == 0 {
		cfg.Alerts.SLAWindow = time.Hour
	}
	if cfg.Alerts.QueueSize == 0 {
		cfg.Alerts.QueueSize = 500
	}
	if cfg.Alerts.AlertWorkers == 0 {
		cfg.Alerts.AlertWorkers = 4
	}
	if cfg.Alerts.DispatchWorkers == 0 {
		cfg.Alerts.DispatchWorkers = 10
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
