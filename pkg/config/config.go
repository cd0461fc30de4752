package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DefaultMeetingLink is the shared video room handed out for video consultations.
const DefaultMeetingLink = "https://us05web.zoom.us/j/8859803779?pwd=xkCE0JgVRRcoCHL7aunDWVBgyVfoHt.1"

// Config is the process configuration, read once at startup.
type Config struct {
	Env  string
	Port string

	DatabaseURL     string
	DatabaseName    string
	DBMaxOpenConns  int
	DBConnTimeout   time.Duration
	DBSocketTimeout time.Duration

	JWTSecret    string
	AuthDisabled bool

	MeetingLink string

	AIBaseURL string
	AITimeout time.Duration

	StorageProvider     string
	StagingDir          string
	StagingMaxAge       time.Duration
	LocalStorageDir     string
	LocalStorageBaseURL string
	SupabaseURL         string
	SupabaseKey         string
	SupabaseBucket      string
	S3Bucket            string
	S3Region            string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	MaxUploadBytes      int

	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	PaymentProvider  string
	DevPaymentSecret string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:  env("APP_ENV", "production"),
		Port: env("PORT", "3000"),

		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DatabaseName:    os.Getenv("DATABASE_NAME"),
		DBMaxOpenConns:  envInt("DB_MAX_OPEN_CONNS", 10),
		DBConnTimeout:   envDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		DBSocketTimeout: envDuration("DB_SOCKET_TIMEOUT", 45*time.Second),

		JWTSecret:    os.Getenv("IDP_JWT_SECRET"),
		AuthDisabled: envBool("AUTH_DISABLED", false),

		MeetingLink: env("VIDEO_MEETING_LINK", DefaultMeetingLink),

		AIBaseURL: strings.TrimRight(env("AI_BASE_URL", "http://localhost:8000"), "/"),
		AITimeout: envDuration("AI_TIMEOUT", 120*time.Second),

		StorageProvider:     env("STORAGE_PROVIDER", "local"),
		StagingDir:          env("STAGING_DIR", os.TempDir()+"/legal-consult-staging"),
		StagingMaxAge:       envDuration("STAGING_MAX_AGE", time.Hour),
		LocalStorageDir:     env("LOCAL_STORAGE_DIR", "./uploads"),
		LocalStorageBaseURL: env("LOCAL_STORAGE_BASE_URL", "http://localhost:3000/uploads"),
		SupabaseURL:         os.Getenv("SUPABASE_URL"),
		SupabaseKey:         os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:      os.Getenv("SUPABASE_BUCKET"),
		S3Bucket:            os.Getenv("AWS_S3_BUCKET"),
		S3Region:            env("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:  os.Getenv("AWS_SECRET_ACCESS_KEY"),
		MaxUploadBytes:      envInt("MAX_UPLOAD_BYTES", 20*1024*1024),

		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: envList("KAFKA_BROKERS"),
		KafkaTopic:   env("KAFKA_TOPIC", "consultation_events"),

		PaymentProvider:  env("PAYMENT_PROVIDER", "mock"),
		DevPaymentSecret: os.Getenv("DEV_PAYMENT_SECRET"),
	}
}

// Validate reports settings without which the server cannot start.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.DatabaseName == "" {
		return errors.New("DATABASE_NAME is required")
	}
	if !c.AuthDisabled && c.JWTSecret == "" {
		return errors.New("IDP_JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	return nil
}

// MockPayments reports whether the dev-only mock payment completion is enabled.
func (c *Config) MockPayments() bool {
	return c.Env == "dev" && c.PaymentProvider == "mock"
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
