package config

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults for local development. Deployments override these with a YAML
// file passed via --config.
var Config = CoderunConfig{
	Env:         Dev,
	Addr:        ":9001",
	PrivateAddr: ":9002",
	BaseUrl:     "http://localhost:9001",
	LogLevel:    zerolog.DebugLevel,

	Api: ApiConfig{
		BaseUrl:             "http://localhost:8000",
		UserAgent:           "CodeRunWeb/1.0",
		Timeout:             30 * time.Second,
		HealthCheckInterval: time.Minute,
		HealthPath:          "/openapi.json",
	},

	Auth: AuthConfig{
		CookieDomain:         "",
		CookieSecure:         false,
		CookieSecret:         "",
		DefaultTokenLifetime: 120 * time.Minute,
	},

	Video: VideoConfig{
		StreamBaseUrl: "http://localhost:8080",
		S3: S3Config{
			PresignTTL: 6 * time.Hour,
		},
	},

	Upload: UploadConfig{
		MaxThumbnailBytes: 10 * 1024 * 1024,
		MaxVideoBytes:     2 * 1024 * 1024 * 1024,
	},
}
