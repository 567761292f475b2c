package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Log       LogConfig
	Store     StoreConfig
	Cards     CardsConfig
	Photos    PhotosConfig
	Auth      AuthConfig
	Downloads DownloadsConfig
	Imports   ImportsConfig
	CORS      CORSConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig locates the flat student record file.
type StoreConfig struct {
	DataFile string
}

// CardsConfig controls where rendered cards go and which artwork sits beneath them.
type CardsConfig struct {
	OutputDir       string
	FrontBackground string
	BackBackground  string
	// RenderWorkers sizes the background pool that renders imported cards.
	RenderWorkers int
}

// PhotosConfig tunes photo normalisation and retention.
type PhotosConfig struct {
	Dir            string
	SizePx         int
	MaxUploadBytes int64
	DeleteOnRemove bool
}

// AuthConfig lists operator accounts and token settings.
type AuthConfig struct {
	// Users maps username to bcrypt hash.
	Users      map[string]string
	JWTSecret  string
	Expiration time.Duration
}

// DownloadsConfig configures signed card download links.
type DownloadsConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// ImportsConfig bounds spreadsheet uploads.
type ImportsConfig struct {
	MaxFileSizeBytes int64
}

// CORSConfig lists browser origins allowed to call the API. Empty allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Store = StoreConfig{DataFile: v.GetString("DATA_FILE")}

	cfg.Cards = CardsConfig{
		OutputDir:       v.GetString("PDF_DIR"),
		FrontBackground: v.GetString("FRONT_BACKGROUND"),
		BackBackground:  v.GetString("BACK_BACKGROUND"),
		RenderWorkers:   v.GetInt("CARD_RENDER_WORKERS"),
	}

	maxPhoto := v.GetInt64("PHOTO_MAX_UPLOAD_BYTES")
	if maxPhoto <= 0 {
		maxPhoto = 5 * 1024 * 1024
	}
	cfg.Photos = PhotosConfig{
		Dir:            v.GetString("PHOTO_DIR"),
		SizePx:         v.GetInt("PHOTO_SIZE"),
		MaxUploadBytes: maxPhoto,
		DeleteOnRemove: v.GetBool("DELETE_PHOTO_ON_REMOVE"),
	}

	cfg.Auth = AuthConfig{
		Users:      parseUsers(v.GetString("AUTH_USERS")),
		JWTSecret:  v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.Downloads = DownloadsConfig{
		SignedURLSecret: v.GetString("DOWNLOAD_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOWNLOAD_SIGNED_URL_TTL"), 15*time.Minute),
	}

	maxImport := v.GetInt64("IMPORT_MAX_FILE_SIZE")
	if maxImport <= 0 {
		maxImport = 10 * 1024 * 1024
	}
	cfg.Imports = ImportsConfig{MaxFileSizeBytes: maxImport}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS"))}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DATA_FILE", "student_data.json")
	v.SetDefault("PDF_DIR", "pdfs")
	v.SetDefault("FRONT_BACKGROUND", "assets/1.jpeg")
	v.SetDefault("BACK_BACKGROUND", "assets/2.jpeg")
	v.SetDefault("CARD_RENDER_WORKERS", 2)

	v.SetDefault("PHOTO_DIR", "photos")
	v.SetDefault("PHOTO_SIZE", 600)
	v.SetDefault("PHOTO_MAX_UPLOAD_BYTES", 5*1024*1024)
	v.SetDefault("DELETE_PHOTO_ON_REMOVE", false)

	// bcrypt hashes contain '$'; keep AUTH_USERS single-quoted in .env so godotenv does not expand them.
	v.SetDefault("AUTH_USERS", "")
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("DOWNLOAD_SIGNED_URL_SECRET", "dev_download_secret")
	v.SetDefault("DOWNLOAD_SIGNED_URL_TTL", "15m")

	v.SetDefault("IMPORT_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// parseUsers reads "name:hash,name2:hash2". Entries without a colon are ignored.
func parseUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, entry := range splitAndTrim(raw) {
		name, hash, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || hash == "" {
			continue
		}
		users[name] = strings.TrimSpace(hash)
	}
	return users
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
