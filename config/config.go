package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	MQBackendNone     = "none"
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
)

type Config struct {
	ServerPort    int
	JWTSecret     string
	TokenTTL      time.Duration
	StoreBackend  string
	AuthRateLimit int
	CORSOrigin    string
	Log           LogConfig
	Dynamo        DynamoConfig
	Database      DatabaseConfig
	MQ            MQConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// DynamoConfig describes the DynamoDB tables and how to reach them.
// Endpoint is only set when talking to DynamoDB Local.
type DynamoConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsersTable      string
	SessionsTable   string
	EmailIndex      string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type MQConfig struct {
	Backend      string
	LoginChannel string
	RabbitMQ     RabbitMQConfig
	PubSub       PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dynamoConfig := DynamoConfig{
		Region:          getEnv("AWS_REGION", "us-east-1"),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
		UsersTable:      getEnv("USERS_TABLE", "users"),
		SessionsTable:   getEnv("SESSIONS_TABLE", "login-sessions"),
		EmailIndex:      getEnv("SESSIONS_EMAIL_INDEX", "email-index"),
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "infectwatch"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "infectwatch_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	mqConfig := MQConfig{
		Backend:      strings.ToLower(getEnv("MQ_BACKEND", MQBackendNone)),
		LoginChannel: getEnv("LOGIN_EVENTS_CHANNEL", "user-logins"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 0),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	return Config{
		ServerPort:    getEnvInt("SERVER_PORT", 8080),
		JWTSecret:     strings.TrimSpace(getEnv("JWT_SECRET", "")),
		TokenTTL:      getEnvDuration("TOKEN_TTL", 24*time.Hour),
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreBackendDynamoDB)),
		AuthRateLimit: getEnvInt("AUTH_RATE_LIMIT", 20),
		CORSOrigin:    getEnv("CORS_ORIGIN", "http://localhost:3000"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Dynamo:   dynamoConfig,
		Database: dbConfig,
		MQ:       mqConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}
