package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Env         string

	// WhatsApp Cloud API
	WhatsAppPhoneID     string
	WhatsAppAccessToken string
	WhatsAppVerifyToken string

	// Twilio (SMS channel)
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioSMSFrom    string

	// Admin notifications
	AdminPhone string

	// Engine tuning
	UnknownStreak      int           // consecutive unknown intents before escalation
	AITimeout          time.Duration // hard budget for the AI generation call
	WebchatIdleClose   time.Duration
	MessagingIdleClose time.Duration
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Port:                os.Getenv("PORT"),
		Env:                 os.Getenv("ENV"),
		WhatsAppPhoneID:     os.Getenv("WHATSAPP_PHONE_ID"),
		WhatsAppAccessToken: os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		WhatsAppVerifyToken: os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioSMSFrom:       os.Getenv("TWILIO_SMS_FROM"),
		AdminPhone:          os.Getenv("ADMIN_PHONE"),
	}

	// Default values
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}

	cfg.UnknownStreak = envInt("UNKNOWN_STREAK", 3)
	cfg.AITimeout = envSeconds("AI_TIMEOUT_SECONDS", 5*time.Second)
	cfg.WebchatIdleClose = envSeconds("WEBCHAT_IDLE_CLOSE_SECONDS", 30*time.Minute)
	cfg.MessagingIdleClose = envSeconds("MESSAGING_IDLE_CLOSE_SECONDS", 24*time.Hour)

	return cfg
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envSeconds(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}
