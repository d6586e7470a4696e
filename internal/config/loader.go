package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/stratix/okrimport/internal/db"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// StorageConfig holds object store connection settings.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ImportConfig holds import pipeline tuning.
type ImportConfig struct {
	SyncThreshold     int
	SyncWait          time.Duration
	BatchSize         int
	MaxRows           int
	MaxFileBytes      int64
	DedupWindow       time.Duration
	HeartbeatInterval time.Duration
	StaleJobAge       time.Duration
	WritesPerSecond   float64
}

// Config is the full service configuration.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Storage  StorageConfig
	Import   ImportConfig
}

// Default returns the built-in configuration used when no overrides exist.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			Endpoint: "localhost:9000",
			Bucket:   "okr-imports",
		},
		Import: ImportConfig{
			SyncThreshold:     25,
			SyncWait:          5 * time.Second,
			BatchSize:         100,
			MaxRows:           10000,
			MaxFileBytes:      10 << 20,
			DedupWindow:       24 * time.Hour,
			HeartbeatInterval: 30 * time.Second,
			StaleJobAge:       30 * time.Minute,
			WritesPerSecond:   200,
		},
	}
}

// Load reads config.yaml from configPath and merges environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()       // allow environment overrides
	v.SetEnvPrefix("OKRI") // map env vars like OKRI_DATABASE_HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("storage.endpoint")
	v.BindEnv("storage.access_key")
	v.BindEnv("storage.secret_key")
	v.BindEnv("storage.bucket")
	v.BindEnv("storage.use_ssl")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	if v.IsSet("storage.endpoint") {
		cfg.Storage.Endpoint = v.GetString("storage.endpoint")
	}
	if v.IsSet("storage.access_key") {
		cfg.Storage.AccessKey = v.GetString("storage.access_key")
	}
	if v.IsSet("storage.secret_key") {
		cfg.Storage.SecretKey = v.GetString("storage.secret_key")
	}
	if v.IsSet("storage.bucket") {
		cfg.Storage.Bucket = v.GetString("storage.bucket")
	}
	if v.IsSet("storage.use_ssl") {
		cfg.Storage.UseSSL = v.GetBool("storage.use_ssl")
	}

	if v.IsSet("import.sync_threshold") {
		cfg.Import.SyncThreshold = v.GetInt("import.sync_threshold")
	}
	if v.IsSet("import.sync_wait") {
		cfg.Import.SyncWait = v.GetDuration("import.sync_wait")
	}
	if v.IsSet("import.batch_size") {
		cfg.Import.BatchSize = v.GetInt("import.batch_size")
	}
	if v.IsSet("import.max_rows") {
		cfg.Import.MaxRows = v.GetInt("import.max_rows")
	}
	if v.IsSet("import.max_file_bytes") {
		cfg.Import.MaxFileBytes = v.GetInt64("import.max_file_bytes")
	}
	if v.IsSet("import.dedup_window") {
		cfg.Import.DedupWindow = v.GetDuration("import.dedup_window")
	}
	if v.IsSet("import.heartbeat_interval") {
		cfg.Import.HeartbeatInterval = v.GetDuration("import.heartbeat_interval")
	}
	if v.IsSet("import.stale_job_age") {
		cfg.Import.StaleJobAge = v.GetDuration("import.stale_job_age")
	}
	if v.IsSet("import.writes_per_second") {
		cfg.Import.WritesPerSecond = v.GetFloat64("import.writes_per_second")
	}

	return cfg, nil
}
