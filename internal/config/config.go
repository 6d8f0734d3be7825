package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Addr          string
	WarehousePath string
	BronzePath    string
	FeedFiles     []string
	MigrateOnly   bool
	SkipAnalytics bool
	Debug         bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	feedStr := getEnv("CVEMART_FEEDS", "")
	cfg.Addr = getEnv("CVEMART_ADDR", ":8080")
	cfg.WarehousePath = getEnv("CVEMART_WAREHOUSE", getDefaultDBPath("warehouse.db"))
	cfg.BronzePath = getEnv("CVEMART_BRONZE", getDefaultDBPath("bronze.db"))
	cfg.SkipAnalytics = getEnvBool("CVEMART_SKIP_ANALYTICS", false)

	// Command Line Flags (Override Env)
	flag.StringVar(&feedStr, "feeds", feedStr, "CVE feed JSON file(s) to stage (comma separated)")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP status server address")
	flag.StringVar(&cfg.WarehousePath, "warehouse", cfg.WarehousePath, "Path to the warehouse SQLite database")
	flag.StringVar(&cfg.BronzePath, "bronze", cfg.BronzePath, "Path to the bronze staging SQLite database")
	flag.BoolVar(&cfg.MigrateOnly, "migrate", false, "Create the warehouse schema and exit")
	flag.BoolVar(&cfg.SkipAnalytics, "skip-analytics", cfg.SkipAnalytics, "Skip the gold layer rebuild after loading")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")

	flag.Parse()

	cfg.FeedFiles = parseFeeds(feedStr)

	return cfg
}

func parseFeeds(s string) []string {
	var feeds []string
	if s == "" {
		return feeds
	}
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			feeds = append(feeds, trimmed)
		}
	}
	return feeds
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return name
	}

	dir := filepath.Join(home, ".cvemart")

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .cvemart directory, using current dir: %v", err)
		return name
	}

	return filepath.Join(dir, name)
}
