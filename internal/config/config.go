package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreDynamo = "dynamo"
)

// Media backends.
const (
	MediaLocal = "local"
	MediaGCS   = "gcs"
	MediaS3    = "s3"
)

// Identity resolution modes.
const (
	AuthGateway  = "gateway"
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

type Config struct {
	Env            string        `yaml:"env" env:"ENV" env-default:"dev"`
	ServerAddress  string        `yaml:"server_address" env:"SERVER_ADDRESS" env-default:":8080"`
	BasePath       string        `yaml:"base_path" env:"BASE_PATH"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"10s"`

	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
	Auth     AuthConfig     `yaml:"auth"`
	Store    StoreConfig    `yaml:"store"`
	Media    MediaConfig    `yaml:"media"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Profiles ProfilesConfig `yaml:"profiles"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format     string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	Output     string `yaml:"output" env:"LOG_OUTPUT" env-default:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"50"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"14"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"https://*.appetizr.co"`
}

type AuthConfig struct {
	Mode string `yaml:"mode" env:"AUTH_MODE" env-default:"gateway"`

	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`

	FirebaseProjectID       string `yaml:"firebase_project_id" env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsJSON string `yaml:"firebase_credentials_json" env:"FIREBASE_CREDENTIALS_JSON"`
}

type StoreConfig struct {
	Kind string `yaml:"kind" env:"STORE_KIND" env-default:"memory"`

	// DataDir holds memory-store snapshots; empty keeps them in RAM only.
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`

	MongoURI string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDB  string `yaml:"mongo_db" env:"MONGO_DB" env-default:"appetizr"`

	DynamoEndpoint    string `yaml:"dynamo_endpoint" env:"DYNAMODB_LOCAL"`
	DynamoRegion      string `yaml:"dynamo_region" env:"AWS_REGION" env-default:"ap-southeast-2"`
	DynamoTablePrefix string `yaml:"dynamo_table_prefix" env:"NODE_ENV" env-default:"dev"`
	DynamoCreateTable bool   `yaml:"dynamo_create_table" env:"DYNAMODB_CREATE_TABLE" env-default:"false"`
}

type MediaConfig struct {
	Kind          string `yaml:"kind" env:"MEDIA_KIND" env-default:"local"`
	PublicBaseURL string `yaml:"public_base_url" env:"MEDIA_PUBLIC_BASE_URL" env-default:"/uploads"`
	UploadDir     string `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"./uploads"`

	Bucket string `yaml:"bucket" env:"AWS_S3_BUCKET"`

	S3Endpoint  string `yaml:"s3_endpoint" env:"S3_ENDPOINT" env-default:"s3.amazonaws.com"`
	S3AccessKey string `yaml:"s3_access_key" env:"AWS_ACCESS_KEY_ID"`
	S3SecretKey string `yaml:"s3_secret_key" env:"AWS_SECRET_ACCESS_KEY"`
	S3Region    string `yaml:"s3_region" env:"S3_REGION" env-default:"ap-southeast-2"`

	Moderation bool `yaml:"moderation" env:"MEDIA_MODERATION" env-default:"false"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path" env:"METRICS_PATH" env-default:"/metrics"`
}

type ProfilesConfig struct {
	MemberTable string `yaml:"member_table" env:"MEMBER_TABLE" env-default:"UserProfile"`
	VenueTable  string `yaml:"venue_table" env:"VENUE_TABLE" env-default:"VenueProfile"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from, in order of preference: the explicit path,
// CONFIG_PATH, ./local.yaml, then the environment alone. Environment
// variables override file values in every case.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("local.yaml"); err == nil {
			path = "local.yaml"
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TableName returns the environment-prefixed table (or collection) name,
// e.g. "dev_VenueProfile".
func (c *Config) TableName(base string) string {
	if c.Store.DynamoTablePrefix == "" {
		return base
	}
	return c.Store.DynamoTablePrefix + "_" + base
}

func (c *Config) validate() error {
	c.BasePath = strings.TrimRight(c.BasePath, "/")
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		c.BasePath = "/" + c.BasePath
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be > 0")
	}

	switch c.Auth.Mode {
	case AuthGateway:
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required for auth mode %q", AuthJWT)
		}
	case AuthFirebase:
		if c.Auth.FirebaseProjectID == "" {
			return fmt.Errorf("auth.firebase_project_id is required for auth mode %q", AuthFirebase)
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store.mongo_uri is required for store %q", StoreMongo)
		}
	case StoreDynamo:
		if c.Store.DynamoRegion == "" {
			return fmt.Errorf("store.dynamo_region is required for store %q", StoreDynamo)
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}

	switch c.Media.Kind {
	case MediaLocal:
		if c.Media.UploadDir == "" {
			return fmt.Errorf("media.upload_dir is required for media %q", MediaLocal)
		}
	case MediaGCS:
		if c.Media.Bucket == "" {
			return fmt.Errorf("media.bucket is required for media %q", MediaGCS)
		}
	case MediaS3:
		if c.Media.Bucket == "" {
			return fmt.Errorf("media.bucket is required for media %q", MediaS3)
		}
		if c.Media.S3AccessKey == "" || c.Media.S3SecretKey == "" {
			return fmt.Errorf("media s3 credentials are required for media %q", MediaS3)
		}
	default:
		return fmt.Errorf("unknown media kind %q", c.Media.Kind)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}
