package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// CurrentVersion is the only configuration layout this build understands.
const CurrentVersion = "1"

// Config represents the complete configuration structure
type Config struct {
	Version  string         `yaml:"version" default:"1"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Drafts   DraftsConfig   `yaml:"drafts"`
	Features FeaturesConfig `yaml:"features"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" default:"./memories.db"`
}

type StorageConfig struct {
	Backend   string   `yaml:"backend" default:"fs"`
	KeyPrefix string   `yaml:"key_prefix" default:"memories"`
	FS        FSConfig `yaml:"fs"`
	S3        S3Config `yaml:"s3"`
}

type FSConfig struct {
	Path      string `yaml:"path" default:"./uploads"`
	PublicURL string `yaml:"public_url" default:"/uploads"`
}

// S3Config describes any S3-compatible bucket (AWS, R2, MinIO).
// Credentials are read from the environment, never from the file.
type S3Config struct {
	Bucket    string `yaml:"bucket" default:""`
	Endpoint  string `yaml:"endpoint" default:""`
	Region    string `yaml:"region" default:"auto"`
	PublicURL string `yaml:"public_url" default:""`
}

type DraftsConfig struct {
	MaxUploadBytes     int           `yaml:"max_upload_bytes" default:"20971520"`
	MaxAssets          int           `yaml:"max_assets" default:"30"`
	DiscardWait        time.Duration `yaml:"discard_wait" default:"3s"`
	DispatchTimeout    time.Duration `yaml:"dispatch_timeout" default:"30s"`
	IdleTTL            time.Duration `yaml:"idle_ttl" default:"2h"`
	SweepInterval      time.Duration `yaml:"sweep_interval" default:"1m"`
	UnstageParallelism int           `yaml:"unstage_parallelism" default:"4"`
	RemoveAttempts     int           `yaml:"remove_attempts" default:"3"`
	UploadsPerMinute   int           `yaml:"uploads_per_minute" default:"60"`
}

type FeaturesConfig struct {
	Authentication AuthConfig  `yaml:"authentication"`
	Metrics        FeatureFlag `yaml:"metrics"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Type    string `yaml:"type" default:"ed25519"`
}

type FeatureFlag struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

var AppConfig *Config

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	AppConfig = config
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported configuration version %q", c.Version)
	}

	switch c.Storage.Backend {
	case "fs":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Features.Authentication.Type {
	case "ed25519", "clerk":
	default:
		return fmt.Errorf("unknown authentication type %q", c.Features.Authentication.Type)
	}

	if c.Drafts.DiscardWait <= 0 || c.Drafts.DispatchTimeout <= 0 {
		return fmt.Errorf("drafts.discard_wait and drafts.dispatch_timeout must be positive")
	}
	if c.Drafts.UnstageParallelism < 1 {
		return fmt.Errorf("drafts.unstage_parallelism must be at least 1")
	}
	if c.Drafts.MaxUploadBytes < 1 {
		return fmt.Errorf("drafts.max_upload_bytes must be at least 1")
	}
	if c.Drafts.UploadsPerMinute < 1 {
		return fmt.Errorf("drafts.uploads_per_minute must be at least 1")
	}

	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if val, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(val))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
