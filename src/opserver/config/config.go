package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/redquill/redquill/src/opserver/data"
)

type Config struct {
	Port             string
	MySQLDSN         string
	RedisURL         string
	JWTSecret        string
	AgentKey         string
	OperatorPassHash string
	AbilityDir       string
	ProfileDir       string
	LinkTimeout      time.Duration
	SweepInterval    time.Duration
	DeadWindows      int
	DiscordToken     string
	DiscordChannelID string
}

func Load(db *gorm.DB) Config {
	// Load settings from database
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	return Config{
		Port:             setting("port", "PORT", "8880"),
		MySQLDSN:         getenv("MYSQL_DSN", "redquill:redquill@tcp(127.0.0.1:3306)/redquill"),
		RedisURL:         getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret:        setting("jwt_secret", "JWT_SECRET", ""),
		AgentKey:         setting("agent_key", "AGENT_KEY", ""),
		OperatorPassHash: setting("operator_pass_hash", "OPERATOR_PASS_HASH", ""),
		AbilityDir:       setting("ability_dir", "ABILITY_DIR", "catalog/abilities"),
		ProfileDir:       setting("profile_dir", "PROFILE_DIR", "catalog/profiles"),
		LinkTimeout:      seconds(setting("link_timeout", "LINK_TIMEOUT", "300")),
		SweepInterval:    seconds(setting("sweep_interval", "SWEEP_INTERVAL", "15")),
		DeadWindows:      number(setting("dead_windows", "DEAD_WINDOWS", "3")),
		DiscordToken:     setting("discord_token", "DISCORD_TOKEN", ""),
		DiscordChannelID: setting("discord_channel_id", "DISCORD_CHANNEL_ID", ""),
	}
}

// setting reads a value from the settings table with an env fallback.
func setting(name, envKey, def string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = def
	}
	return val
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func seconds(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func number(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}
