package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/i474232898/weather-report/internal/fetch"
)

// Config is loaded once at start-up and never modified afterwards.
type Config struct {
	AppID      string   `mapstructure:"APP_ID" validate:"required"`
	AppSecret  string   `mapstructure:"APP_SECRET" validate:"required"`
	OpenID     string   `mapstructure:"OPEN_ID" validate:"required"`
	TemplateID string   `mapstructure:"TEMPLATE_ID" validate:"required"`
	Cities     []string `mapstructure:"CITIES" validate:"min=1,dive,required"`

	// Outbound HTTP tuning shared by page, token and send requests.
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"MAX_RETRIES" validate:"gte=1"`
	RetryDelay     time.Duration `mapstructure:"RETRY_DELAY" validate:"gt=0"`
	MaxRetryDelay  time.Duration `mapstructure:"MAX_RETRY_DELAY" validate:"gte=0"`

	CityDelay         time.Duration `mapstructure:"CITY_DELAY" validate:"gte=0"`
	NoteTimeout       time.Duration `mapstructure:"NOTE_TIMEOUT" validate:"gt=0"`
	NoteFeedURL       string        `mapstructure:"NOTE_FEED_URL" validate:"omitempty,url"`
	TokenSafetyMargin time.Duration `mapstructure:"TOKEN_SAFETY_MARGIN" validate:"gte=0"`
	MessageURL        string        `mapstructure:"MESSAGE_URL" validate:"omitempty,url"`

	// Optional shared token cache.
	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisTokenKey string `mapstructure:"REDIS_TOKEN_KEY"`
}

var envKeys = []string{
	"APP_ID", "APP_SECRET", "OPEN_ID", "TEMPLATE_ID", "CITIES",
	"REQUEST_TIMEOUT", "MAX_RETRIES", "RETRY_DELAY", "MAX_RETRY_DELAY",
	"CITY_DELAY", "NOTE_TIMEOUT", "NOTE_FEED_URL", "TOKEN_SAFETY_MARGIN", "MESSAGE_URL",
	"REDIS_URL", "REDIS_TOKEN_KEY",
}

var validate = validator.New()

var credentialFields = []string{"AppID", "AppSecret", "OpenID", "TemplateID"}

// Default returns the configuration used for every variable left unset.
func Default() Config {
	p := fetch.DefaultPolicy()
	return Config{
		RequestTimeout:    p.Timeout,
		MaxRetries:        p.MaxAttempts,
		RetryDelay:        p.InitialInterval,
		MaxRetryDelay:     p.MaxInterval,
		CityDelay:         2 * time.Second,
		NoteTimeout:       5 * time.Second,
		TokenSafetyMargin: 300 * time.Second,
		MessageURL:        "https://mp.weixin.qq.com",
	}
}

// Load reads the configuration like Read and validates it for delivery.
func Load(envFile string, cities []string, logger *zap.Logger) (Config, error) {
	cfg, err := Read(envFile, cities, logger)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read loads envFile (if present) into the environment and builds the
// configuration without validating it. Non-empty cities replace CITY/CITIES.
func Read(envFile string, cities []string, logger *zap.Logger) (Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logger.Info("no env file loaded", zap.String("path", envFile), zap.Error(err))
		}
	}

	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	if cleaned := cleanList(cities); len(cleaned) > 0 {
		cfg.Cities = cleaned
	}
	return cfg, nil
}

// FromEnv decodes configuration from lookup without validating it.
// CITIES takes precedence over CITY; both are comma separated.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	raw := make(map[string]interface{})
	for _, key := range envKeys {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			raw[key] = strings.TrimSpace(v)
		}
	}
	if _, ok := raw["CITIES"]; !ok {
		if v, ok := lookup("CITY"); ok && strings.TrimSpace(v) != "" {
			raw["CITIES"] = strings.TrimSpace(v)
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	cfg.Cities = cleanList(cfg.Cities)
	if cfg.RedisTokenKey == "" {
		cfg.RedisTokenKey = "weather-report:access_token:"
	}
	return cfg, nil
}

// Validate checks required credentials and ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateDryRun checks everything Validate does except the platform
// credentials and recipient, which a dry run never uses.
func (c Config) ValidateDryRun() error {
	if err := validate.StructExcept(c, credentialFields...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// FetchPolicy is the retry policy for pages, tokens and sends.
func (c Config) FetchPolicy() fetch.Policy {
	return fetch.Policy{
		MaxAttempts:     c.MaxRetries,
		Timeout:         c.RequestTimeout,
		InitialInterval: c.RetryDelay,
		MaxInterval:     c.MaxRetryDelay,
	}
}

// NotePolicy is the retry policy for note sources: a single short attempt.
func (c Config) NotePolicy() fetch.Policy {
	return fetch.Policy{
		MaxAttempts: 1,
		Timeout:     c.NoteTimeout,
	}
}

// secondsToDurationHook accepts bare integers as seconds.
func secondsToDurationHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	n, err := strconv.Atoi(data.(string))
	if err != nil {
		return data, nil
	}
	return time.Duration(n) * time.Second, nil
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
