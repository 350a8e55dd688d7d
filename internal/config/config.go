package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	JWTSecret      string
	JWTAccessTTLHr int // hours; default is the 7-day window

	OTPCodeTTLMin  int // minutes the reset code stays valid
	OTPGraceMin    int // extra minutes between verify and reset

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLHr: getEnvInt("JWT_ACCESS_TTL_HOURS", 7*24),

		OTPCodeTTLMin: getEnvInt("OTP_CODE_TTL_MINUTES", 10),
		OTPGraceMin:   getEnvInt("OTP_GRACE_MINUTES", 5),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Admin"),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLHr) * time.Hour
}

func (c Config) OTPCodeTTL() time.Duration {
	return time.Duration(c.OTPCodeTTLMin) * time.Minute
}

func (c Config) OTPGrace() time.Duration {
	return time.Duration(c.OTPGraceMin) * time.Minute
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "ticketdesk")
	pass := getEnv("DB_PASSWORD", "ticketdesk")
	name := getEnv("DB_NAME", "ticketdesk")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}
