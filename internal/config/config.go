package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	PubSubChannelBase      string
	JWTSecret              string
	JWTRefreshSecret       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	CatalogCacheTTL        time.Duration
	RoomTimelineCap        int
	RoomFlushInterval      time.Duration
	RoomStackWindow        time.Duration
	ChatCooldown           time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LIVECAST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Livecast API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("pubsub.channel_base", "livecast")
	v.SetDefault("cloudinary.folder", "livecast/gifts")
	v.SetDefault("catalog.cache_ttl", "5m")
	v.SetDefault("room.timeline_cap", 200)
	v.SetDefault("room.flush_interval", "150ms")
	v.SetDefault("room.stack_window", "3s")
	v.SetDefault("chat.cooldown", "1s")

	cacheTTL, err := parseDuration(v, "catalog.cache_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid catalog cache ttl: %w", err)
	}
	flushInterval, err := parseDuration(v, "room.flush_interval", 150*time.Millisecond)
	if err != nil {
		return Config{}, fmt.Errorf("invalid room flush interval: %w", err)
	}
	stackWindow, err := parseDuration(v, "room.stack_window", 3*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid room stack window: %w", err)
	}
	cooldown, err := parseDuration(v, "chat.cooldown", time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid chat cooldown: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		PubSubChannelBase:      v.GetString("pubsub.channel_base"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		CatalogCacheTTL:        cacheTTL,
		RoomTimelineCap:        v.GetInt("room.timeline_cap"),
		RoomFlushInterval:      flushInterval,
		RoomStackWindow:        stackWindow,
		ChatCooldown:           cooldown,
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.RoomTimelineCap <= 0 {
		cfg.RoomTimelineCap = 200
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
