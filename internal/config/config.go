package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Extractor ExtractorConfig
	Download  DownloadConfig
	Upload    UploadConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type AuthConfig struct {
	Username      string
	Password      string
	JWTSecret     string
	JWTExpiration int // hours
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	StartPerHour int
	BulkPerHour  int
}

type ExtractorConfig struct {
	APIBase     string
	BrowserPath string
	Timeout     int // seconds, metadata API calls
	SniffWait   int // seconds to idle on the player page
}

type DownloadConfig struct {
	TempDir     string
	DownloadDir string
	MaxParallel int
	Timeout     int   // seconds, per segment
	MinFileSize int64 // bytes; anything smaller is treated as corrupt
}

type UploadConfig struct {
	Host          string
	SiteChannelID string
}

func Load() (*Config, error) {
	// .env first so viper's env binding sees it
	_ = godotenv.Load()

	readSecret("JWT_SECRET")
	readSecret("AUTH_PASSWORD")
	readSecret("REDIS_PASSWORD")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("auth.username", "AUTH_USERNAME")
	_ = viper.BindEnv("auth.password", "AUTH_PASSWORD")
	_ = viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("auth.jwt_expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("ratelimit.start_per_hour", "RATELIMIT_START_PER_HOUR")
	_ = viper.BindEnv("ratelimit.bulk_per_hour", "RATELIMIT_BULK_PER_HOUR")
	_ = viper.BindEnv("extractor.api_base", "API_BASE")
	_ = viper.BindEnv("extractor.browser_path", "CHROME_PATH")
	_ = viper.BindEnv("extractor.timeout", "EXTRACTOR_TIMEOUT")
	_ = viper.BindEnv("extractor.sniff_wait", "EXTRACTOR_SNIFF_WAIT")
	_ = viper.BindEnv("download.temp_dir", "TEMP_DIR")
	_ = viper.BindEnv("download.download_dir", "DOWNLOAD_DIR")
	_ = viper.BindEnv("download.max_parallel", "DOWNLOAD_MAX_PARALLEL")
	_ = viper.BindEnv("download.timeout", "DOWNLOAD_TIMEOUT")
	_ = viper.BindEnv("download.min_file_size", "DOWNLOAD_MIN_FILE_SIZE")
	_ = viper.BindEnv("upload.host", "UPLOAD_HOST")
	_ = viper.BindEnv("upload.site_channel_id", "UPLOAD_SITE_CHANNEL_ID")

	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("auth.username", "admin")
	viper.SetDefault("auth.password", "")
	viper.SetDefault("auth.jwt_secret", "change-me-in-production")
	viper.SetDefault("auth.jwt_expiration", 24)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.start_per_hour", 30)
	viper.SetDefault("ratelimit.bulk_per_hour", 5)
	viper.SetDefault("extractor.api_base", "https://anime-api-itzzzme.vercel.app/api")
	viper.SetDefault("extractor.timeout", 30)
	viper.SetDefault("extractor.sniff_wait", 5)
	viper.SetDefault("download.temp_dir", "temp")
	viper.SetDefault("download.download_dir", "downloaded")
	viper.SetDefault("download.max_parallel", 20)
	viper.SetDefault("download.timeout", 30)
	viper.SetDefault("download.min_file_size", 1000)
	viper.SetDefault("upload.host", "https://web17.rumble.com")
	viper.SetDefault("upload.site_channel_id", "15")

	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Auth: AuthConfig{
			Username:      viper.GetString("auth.username"),
			Password:      viper.GetString("auth.password"),
			JWTSecret:     viper.GetString("auth.jwt_secret"),
			JWTExpiration: viper.GetInt("auth.jwt_expiration"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			StartPerHour: viper.GetInt("ratelimit.start_per_hour"),
			BulkPerHour:  viper.GetInt("ratelimit.bulk_per_hour"),
		},
		Extractor: ExtractorConfig{
			APIBase:     viper.GetString("extractor.api_base"),
			BrowserPath: viper.GetString("extractor.browser_path"),
			Timeout:     viper.GetInt("extractor.timeout"),
			SniffWait:   viper.GetInt("extractor.sniff_wait"),
		},
		Download: DownloadConfig{
			TempDir:     viper.GetString("download.temp_dir"),
			DownloadDir: viper.GetString("download.download_dir"),
			MaxParallel: viper.GetInt("download.max_parallel"),
			Timeout:     viper.GetInt("download.timeout"),
			MinFileSize: viper.GetInt64("download.min_file_size"),
		},
		Upload: UploadConfig{
			Host:          viper.GetString("upload.host"),
			SiteChannelID: viper.GetString("upload.site_channel_id"),
		},
	}

	return cfg, nil
}
