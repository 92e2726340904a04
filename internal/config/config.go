package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DefaultBannedWords is used when FILTER_BANNED_WORDS is unset. It covers
// profanity and slurs only; scam, abuse and the like stay postable.
var DefaultBannedWords = []string{
	"fuck", "fucking", "fucker", "motherfucker", "shit", "shitty", "bullshit",
	"asshole", "bastard", "bitch", "cunt", "dickhead",
	"nigger", "nigga", "chink", "spic", "kike", "faggot", "fag",
	"retard", "retarded", "tranny",
	"porn", "porno",
}

// Filter holds the content screening rules applied to every create and
// edit.
type Filter struct {
	BannedWords  []string
	BlockLinks   bool
	BlockContact bool
	// MaxRepeat rejects a letter repeated this many times in a row.
	// Zero disables the check.
	MaxRepeat int
	// MaxShouted rejects text with more than this many all-caps words.
	// Zero disables the check.
	MaxShouted int
}

// DefaultFilter is the rule set used when no FILTER_* variables are set.
func DefaultFilter() Filter {
	return Filter{
		BannedWords:  DefaultBannedWords,
		BlockLinks:   true,
		BlockContact: true,
		MaxRepeat:    8,
		MaxShouted:   3,
	}
}

type Config struct {
	// Document store
	StoreDriver string
	SQLitePath  string

	// Database (postgres driver)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	DBMaxOpenConns int

	// JWT
	JWTSecret       string
	JWTAccessExpiry time.Duration

	// Admin bootstrap
	AdminEmails string

	// Live mirror window
	WindowDefault int
	WindowStep    int
	WindowMax     int

	// Content screening
	Filter Filter

	// Logging
	LogLevel     string
	LogRetention time.Duration

	// Server
	Port        string
	WSPort      string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		StoreDriver: getEnv("STORE_DRIVER", DriverPostgres),
		SQLitePath:  getEnv("SQLITE_PATH", "data/fellowship.db"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "fellowship"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		DBMaxOpenConns: parseInt(getEnv("DB_MAX_OPEN_CONNS", "50"), 50),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTAccessExpiry: parseDuration(getEnv("JWT_ACCESS_EXPIRY", "24h"), 24*time.Hour),

		AdminEmails: getEnv("ADMIN_EMAILS", ""),

		WindowDefault: parseInt(getEnv("WINDOW_DEFAULT", "5"), 5),
		WindowStep:    parseInt(getEnv("WINDOW_STEP", "5"), 5),
		WindowMax:     parseInt(getEnv("WINDOW_MAX", "200"), 200),

		Filter: loadFilter(),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogRetention: parseDuration(getEnv("LOG_RETENTION", "720h"), 30*24*time.Hour),

		Port:        getEnv("PORT", "8080"),
		WSPort:      getEnv("WS_PORT", "8081"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// ClampWindow bounds a requested window to [1, WindowMax], falling back to
// WindowDefault when n is not positive.
func (c *Config) ClampWindow(n int) int {
	if n <= 0 {
		n = c.WindowDefault
	}
	if c.WindowMax > 0 && n > c.WindowMax {
		n = c.WindowMax
	}
	return n
}

func loadFilter() Filter {
	f := DefaultFilter()
	if words := parseList(getEnv("FILTER_BANNED_WORDS", "")); len(words) > 0 {
		f.BannedWords = words
	}
	f.BlockLinks = parseBool(getEnv("FILTER_BLOCK_LINKS", ""), f.BlockLinks)
	f.BlockContact = parseBool(getEnv("FILTER_BLOCK_CONTACT", ""), f.BlockContact)
	f.MaxRepeat = parseLimit(getEnv("FILTER_MAX_REPEAT", ""), f.MaxRepeat)
	f.MaxShouted = parseLimit(getEnv("FILTER_MAX_SHOUTED", ""), f.MaxShouted)
	return f
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// parseLimit is parseInt that also accepts 0 to switch a rule off.
func parseLimit(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
