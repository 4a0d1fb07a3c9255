package config

import (
	"time"

	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Beta Environment = "beta"
	Dev  Environment = "dev"
)

type CoderunConfig struct {
	Env         Environment   `yaml:"env"`
	Addr        string        `yaml:"addr"`
	PrivateAddr string        `yaml:"private_addr"`
	BaseUrl     string        `yaml:"base_url"`
	LogLevel    zerolog.Level `yaml:"log_level"`
	Api         ApiConfig     `yaml:"api"`
	Auth        AuthConfig    `yaml:"auth"`
	Video       VideoConfig   `yaml:"video"`
	Upload      UploadConfig  `yaml:"upload"`
	DevConfig   DevConfig     `yaml:"dev"`
}

// ApiConfig describes the remote CODE:RUN platform API that every page talks to.
type ApiConfig struct {
	BaseUrl   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`

	// Zero disables the background health monitor.
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	HealthPath          string        `yaml:"health_path"`
}

type AuthConfig struct {
	CookieDomain string `yaml:"cookie_domain"`
	CookieSecure bool   `yaml:"cookie_secure"`

	// Hex-encoded 32-byte key used to seal the API token into the cookie.
	// When empty, a random key is generated at startup and every login is
	// lost on restart.
	CookieSecret string `yaml:"cookie_secret"`

	// Used when the API token carries no readable expiry.
	DefaultTokenLifetime time.Duration `yaml:"default_token_lifetime"`
}

type VideoConfig struct {
	// Base URL of the HLS server. Playlists live at {StreamBaseUrl}/video/{id}_VIDEO.m3u8.
	StreamBaseUrl string   `yaml:"stream_base_url"`
	S3            S3Config `yaml:"s3"`
}

// When S3.Bucket is set, playlist URLs are presigned against the bucket
// instead of being built from StreamBaseUrl.
type S3Config struct {
	Endpoint   string        `yaml:"endpoint"`
	Region     string        `yaml:"region"`
	Key        string        `yaml:"key"`
	Secret     string        `yaml:"secret"`
	Bucket     string        `yaml:"bucket"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

type UploadConfig struct {
	MaxThumbnailBytes int64 `yaml:"max_thumbnail_bytes"`
	MaxVideoBytes     int64 `yaml:"max_video_bytes"`
}

type DevConfig struct {
	LiveTemplates bool `yaml:"live_templates"`
}
