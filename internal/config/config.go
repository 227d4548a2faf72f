package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port           string
	Environment    string   // ENV: production, development, etc.
	LogLevel       string
	FrontendURL    string
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	AllowedHost    string   // production host check; empty disables it

	RedisURI     string
	PostgresURI  string // optional; empty disables postgres
	MongoURI     string // optional; empty disables reading history
	StoreBackend string

	TarotDailyLimit int
	AppDailyLimit   int
	IdentitySalt    string
	EncryptionKey   string // base64 AES-256 key for stored emails; optional

	PalmEndpoint     string
	FaceEndpoint     string
	ChatEndpoint     string
	ChatAPIKey       string
	ChatModel        string
	InferenceTimeout time.Duration

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:8081"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" && !containsOrigin(allowedOrigins, u) {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:8081"}
	}

	store := strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", StoreRedis)))
	switch store {
	case StoreRedis, StorePostgres, StoreMemory:
	default:
		store = StoreRedis
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		LogLevel:       getEnv("LOG_LEVEL", ""),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:8081"),
		AllowedOrigins: allowedOrigins,
		AllowedHost:    strings.TrimSpace(getEnv("ALLOWED_HOST", "")),

		RedisURI:     getEnv("REDIS_URI", "redis://localhost:6379/0"),
		PostgresURI:  getEnv("POSTGRES_URI", ""),
		MongoURI:     getEnv("MONGODB_URI", getEnv("MONGO_URI", "")),
		StoreBackend: store,

		TarotDailyLimit: getEnvInt("TAROT_DAILY_LIMIT", 3),
		AppDailyLimit:   getEnvInt("APP_DAILY_LIMIT", 50),
		IdentitySalt:    getEnv("IDENTITY_SALT", ""),
		EncryptionKey:   getEnv("ENCRYPTION_KEY", ""),

		PalmEndpoint:     getEnv("PALM_ENDPOINT", ""),
		FaceEndpoint:     getEnv("FACE_ENDPOINT", ""),
		ChatEndpoint:     getEnv("CHAT_ENDPOINT", ""),
		ChatAPIKey:       getEnv("CHAT_API_KEY", ""),
		ChatModel:        getEnv("CHAT_MODEL", "gpt-4o-mini"),
		InferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT", 20*time.Second),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "astroguide"),
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// CloudinaryEnabled reports whether all three Cloudinary credentials are set.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to defaultValue for unparseable or non-positive values.
func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(getEnv(key, "")))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(getEnv(key, "")))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
