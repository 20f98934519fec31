// Package config handles application configuration loading from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "evolveedu/internal/utils"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// InferenceConfig holds everything the inference client needs. It is passed
// explicitly to the client constructor; nothing reads it from ambient state.
type InferenceConfig struct {
	// BaseURL is the hosted text-generation endpoint prefix; the model ID is
	// appended per request (e.g. https://api-inference.huggingface.co/models).
	BaseURL string `json:"base_url" yaml:"base_url" validate:"required,url"`
	// APIKey is sent as a bearer token. An empty key still sends the request;
	// the endpoint's rejection follows the generic non-200 path.
	APIKey         string        `json:"api_key" yaml:"api_key"`
	MaxRetries     int           `json:"max_retries" yaml:"max_retries" validate:"min=1"`
	RetryDelay     time.Duration `json:"retry_delay" yaml:"retry_delay"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	// MaxConcurrent caps in-flight upstream calls across all requests.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" validate:"min=1"`
}

// ModelConfig selects the model and token budget for one domain's prompts.
type ModelConfig struct {
	Model        string `json:"model" yaml:"model" validate:"required"`
	MaxNewTokens int    `json:"max_new_tokens" yaml:"max_new_tokens" validate:"min=1"`
}

// DomainsConfig holds the per-domain model selections.
type DomainsConfig struct {
	Notes   ModelConfig `json:"notes" yaml:"notes"`
	Quiz    ModelConfig `json:"quiz" yaml:"quiz"`
	Roadmap ModelConfig `json:"roadmap" yaml:"roadmap"`
	Tutor   ModelConfig `json:"tutor" yaml:"tutor"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	WorkerPort    string   `json:"worker_port" yaml:"worker_port"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	AppBaseURL    string   `json:"app_base_url" yaml:"app_base_url"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "evolveedu-backend" or "evolveedu-worker"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`   // Default: true
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`   // Default: true
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`   // Default: true
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`     // Default: 1.0 (100%)
}

// EmailConfig represents email/SMTP configuration
type EmailConfig struct {
	SMTP              SMTPConfig              `json:"smtp" yaml:"smtp"`
	MilestoneReminder MilestoneReminderConfig `json:"milestone_reminder" yaml:"milestone_reminder"`
	Enabled           bool                    `json:"enabled" yaml:"enabled"`
}

// SMTPConfig represents SMTP server configuration
type SMTPConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
}

// MilestoneReminderConfig controls the reminder emails the worker sends for
// roadmap milestones that are coming due.
type MilestoneReminderConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// WindowHours is how far ahead of a milestone's target date a reminder
	// becomes due.
	WindowHours int `json:"window_hours" yaml:"window_hours"`
}

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`

	Inference InferenceConfig `json:"inference" yaml:"inference"`
	Domains   DomainsConfig   `json:"domains" yaml:"domains"`

	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`
	Email         EmailConfig         `json:"email" yaml:"email"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// NewConfig loads configuration from YAML file first, then overrides with
// environment variables, applies defaults, and validates the result.
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyDefaults fills zero-valued fields with the documented defaults.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WorkerPort == "" {
		c.Server.WorkerPort = "8081"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Inference.BaseURL == "" {
		c.Inference.BaseURL = DefaultInferenceBaseURL
	}
	if c.Inference.MaxRetries == 0 {
		c.Inference.MaxRetries = DefaultInferenceMaxRetries
	}
	if c.Inference.RetryDelay == 0 {
		c.Inference.RetryDelay = DefaultInferenceRetryDelay
	}
	if c.Inference.RequestTimeout == 0 {
		c.Inference.RequestTimeout = DefaultInferenceTimeout
	}
	if c.Inference.MaxConcurrent == 0 {
		c.Inference.MaxConcurrent = DefaultInferenceMaxConcurrent
	}

	if c.Domains.Notes.Model == "" {
		c.Domains.Notes.Model = DefaultNotesModel
	}
	if c.Domains.Notes.MaxNewTokens == 0 {
		c.Domains.Notes.MaxNewTokens = DefaultNotesMaxNewTokens
	}
	if c.Domains.Quiz.Model == "" {
		c.Domains.Quiz.Model = DefaultQuizModel
	}
	if c.Domains.Quiz.MaxNewTokens == 0 {
		c.Domains.Quiz.MaxNewTokens = DefaultQuizMaxNewTokens
	}
	if c.Domains.Roadmap.Model == "" {
		c.Domains.Roadmap.Model = DefaultRoadmapModel
	}
	if c.Domains.Roadmap.MaxNewTokens == 0 {
		c.Domains.Roadmap.MaxNewTokens = DefaultRoadmapMaxNewTokens
	}
	if c.Domains.Tutor.Model == "" {
		c.Domains.Tutor.Model = DefaultTutorModel
	}
	if c.Domains.Tutor.MaxNewTokens == 0 {
		c.Domains.Tutor.MaxNewTokens = DefaultTutorMaxNewTokens
	}

	if c.Email.MilestoneReminder.WindowHours == 0 {
		c.Email.MilestoneReminder.WindowHours = DefaultReminderWindowHours
	}
}

// Validate checks the loaded configuration for structural problems.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInferenceConfigInvalid,
			contextutils.SeverityError,
			"Configuration validation failed",
			err.Error(),
			err,
		)
	}
	return nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv overrides struct fields with environment variables using reflection
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		// Get the yaml tag for the field
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.Split(yamlTag, ",")[0]

		// Convert yaml tag to environment variable name
		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				// time.Duration fields accept duration strings like "2s"
				if field.Type() == reflect.TypeOf(time.Duration(0)) {
					if d, err := time.ParseDuration(envVal); err == nil {
						field.SetInt(int64(d))
					}
					continue
				}
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS)
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			// Recursively process nested structs with the field name as prefix
			if field.CanAddr() {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), fieldPrefix)
			}
		case reflect.Ptr:
			// Handle pointer to struct
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Interface(), fieldPrefix)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file with potential local overrides
func loadConfigWithOverrides() (result0 *Config, err error) {
	// Try to load from environment variable first
	if envPath := os.Getenv("EVOLVEEDU_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	// If no environment variable is set, try default config.yaml
	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
