package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis config
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Reminder engine
	ScanInterval    time.Duration // how often the due-reminder scan runs
	ScanBatchSize   int           // max reminders pulled per scan
	DispatchWorkers int           // concurrent sends per batch
	DeadLetterAfter int           // attempts before a permanent failure is mirrored to the DLQ
	RepairOnStart   bool          // run the notification repair pass at startup

	// AWS services
	AWSRegion    string
	SESFromEmail string
	SNSRegion    string // AWS region for SNS (SMS)
	DLQQueueURL  string // SQS dead letter queue, empty disables mirroring

	// Auth
	JWTSecret string

	// Chatbot proxy
	GeminiAPIKey string
	GeminiModel  string
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		// Local postgres defaults
		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "clockdin",
		DBPassword: "",
		DBName:     "clockdin",
		DBSSLMode:  "disable",

		// Redis defaults
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		// Engine defaults
		ScanInterval:    5 * time.Minute,
		ScanBatchSize:   100,
		DispatchWorkers: 8,
		DeadLetterAfter: 5,

		AWSRegion:    "us-east-1",
		SESFromEmail: "noreply@clockdin.local",

		GeminiModel: "gemini-2.0-flash",
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	// Engine config
	if interval := os.Getenv("SCAN_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid SCAN_INTERVAL: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid SCAN_INTERVAL: must be positive")
		}
		cfg.ScanInterval = d
	}

	if size := os.Getenv("SCAN_BATCH_SIZE"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("invalid SCAN_BATCH_SIZE: %w", err)
		}
		cfg.ScanBatchSize = n
	}

	if workers := os.Getenv("DISPATCH_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_WORKERS: %w", err)
		}
		cfg.DispatchWorkers = n
	}

	if after := os.Getenv("DEAD_LETTER_AFTER"); after != "" {
		n, err := strconv.Atoi(after)
		if err != nil {
			return nil, fmt.Errorf("invalid DEAD_LETTER_AFTER: %w", err)
		}
		cfg.DeadLetterAfter = n
	}

	if repair := os.Getenv("REPAIR_ON_START"); repair != "" {
		b, err := strconv.ParseBool(repair)
		if err != nil {
			return nil, fmt.Errorf("invalid REPAIR_ON_START: %w", err)
		}
		cfg.RepairOnStart = b
	}

	// AWS config
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}

	if region := os.Getenv("SNS_REGION"); region != "" {
		cfg.SNSRegion = region
	} else {
		cfg.SNSRegion = cfg.AWSRegion
	}

	if url := os.Getenv("DLQ_QUEUE_URL"); url != "" {
		cfg.DLQQueueURL = url
	}

	// Auth config
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}

	// Chatbot config
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.GeminiAPIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.GeminiModel = model
	}

	return cfg, nil
}
