package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	HTTPAddr  string
	DBPath    string
	EbooksDir string

	MailHost     string
	MailPort     int
	MailUsername string
	MailPassword string
	MailFrom     string

	JWTSecret string

	RabbitURL      string
	RabbitExchange string

	SeedOnStart bool
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":5000"),
		DBPath:         getEnv("DB_PATH", "./loja.db"),
		EbooksDir:      getEnv("EBOOKS_DIR", "./static/ebooks"),
		MailHost:       getEnv("MAIL_SERVER", "smtp.gmail.com"),
		MailPort:       getEnvInt("MAIL_PORT", 587),
		MailUsername:   os.Getenv("MAIL_USERNAME"),
		MailPassword:   os.Getenv("MAIL_PASSWORD"),
		MailFrom:       getEnv("MAIL_FROM", os.Getenv("MAIL_USERNAME")),
		JWTSecret:      getEnv("SECRET_KEY", "chave-secreta-mudar-em-producao"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "domain_events"),
		SeedOnStart:    getEnvBool("SEED_ON_START", false),
	}

	if cfg.MailPassword == "" {
		log.Warn().Msg("MAIL_PASSWORD is not set; ebook delivery will fail")
	}
	return cfg
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("invalid integer env var, using default")
	}
	return def
}

func getEnvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
