package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultTokenTTL           = 24 * time.Hour
	defaultRequestTimeout     = 10 * time.Second
	defaultNotifierTimeout    = 5 * time.Second
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int      `json:"port" yaml:"port"`
		MaxRequestBodySize string   `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		AllowedOrigins     []string `json:"allowedOrigins" yaml:"allowedOrigins"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// Discord OAuth2 application settings
	Discord *DiscordConfig `json:"discord" yaml:"discord"`

	// JWT signing settings for issued login tokens
	JWT *JWTConfig `json:"jwt" yaml:"jwt"`

	Frontend *FrontendConfig `json:"frontend" yaml:"frontend"`

	Cookie *CookieConfig `json:"cookie" yaml:"cookie"`

	// Notifier configuration for best-effort login notifications
	Notifier *NotifierConfig `json:"notifier" yaml:"notifier"`
}

// DiscordConfig holds the OAuth2 client registered with Discord.
// RedirectURI must match the value registered with Discord byte for byte.
type DiscordConfig struct {
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`
	RedirectURI  string `json:"redirectUri" yaml:"redirectUri"`

	// Endpoint overrides, empty means the public Discord endpoints
	AuthorizeURL string `json:"authorizeUrl" yaml:"authorizeUrl"`
	TokenURL     string `json:"tokenUrl" yaml:"tokenUrl"`
	UserURL      string `json:"userUrl" yaml:"userUrl"`

	// Upper bound for each outbound call to Discord
	RequestTimeout time.Duration `json:"requestTimeout" yaml:"requestTimeout"`
}

// JWTConfig defines how login tokens are signed
type JWTConfig struct {
	Secret string        `json:"secret" yaml:"secret"`
	TTL    time.Duration `json:"ttl" yaml:"ttl"`
}

// FrontendConfig holds the fallback origin used when the redirect URI
// does not yield one.
type FrontendConfig struct {
	Origin string `json:"origin" yaml:"origin"`
}

// CookieConfig defines attributes of cookies set by the service
type CookieConfig struct {
	Secure bool `json:"secure" yaml:"secure"`
}

// NotifierConfig defines where login events are published
type NotifierConfig struct {
	// Provider type: "" (disabled), "webhook", "local" or "google"
	Provider string `json:"provider" yaml:"provider"`

	// Discord webhook URL (for webhook provider)
	WebhookURL string `json:"webhookUrl" yaml:"webhookUrl"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// Google Cloud project and topic (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`
	TopicID   string `json:"topicId" yaml:"topicId"`

	// Timeout applied to each publish
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Example: DISCORD_CLIENT_ID -> discord.clientId
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills optional sections and rejects configurations the
// process cannot start with. Discord credentials are checked per request.
func (c *Config) applyDefaults() error {
	if strings.TrimSpace(c.HTTP.MaxRequestBodySize) == "" {
		c.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if c.Discord == nil {
		c.Discord = &DiscordConfig{}
	}
	if c.Discord.RequestTimeout <= 0 {
		c.Discord.RequestTimeout = defaultRequestTimeout
	}
	if c.JWT == nil || c.JWT.Secret == "" {
		return errors.New("jwt.secret must be provided")
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = defaultTokenTTL
	}
	if c.Frontend == nil {
		c.Frontend = &FrontendConfig{}
	}
	if c.Cookie == nil {
		c.Cookie = &CookieConfig{}
	}
	if c.Notifier != nil && c.Notifier.Timeout <= 0 {
		c.Notifier.Timeout = defaultNotifierTimeout
	}

	return nil
}

// canonicalizeEnvKey maps an env var name onto the YAML tree. Adjacent
// segments are merged when they spell an existing key, so CLIENT_ID and
// CLIENTID both resolve to clientId.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := make([]string, 0)
	for _, s := range strings.Split(strings.ToLower(rawKey), "_") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	canonical := make([]string, 0, len(segments))
	current := existing

	for i := 0; i < len(segments); {
		if matched, next, width, ok := findExistingSegment(current, segments[i:]); ok {
			canonical = append(canonical, matched)
			current = next
			i += width

			continue
		}

		canonical = append(canonical, segments[i])
		current = nil
		i++
	}

	return strings.Join(canonical, ".")
}

// findExistingSegment returns the key matching the longest run of leading
// segments, and how many segments it consumed.
func findExistingSegment(current map[string]any, segments []string) (matched string, next map[string]any, width int, ok bool) {
	if len(current) == 0 {
		return "", nil, 0, false
	}

	for width = len(segments); width > 0; width-- {
		needle := normalizeToken(strings.Join(segments[:width], ""))
		for key, value := range current {
			if normalizeToken(key) != needle {
				continue
			}

			child, _ := value.(map[string]any)

			return key, child, width, true
		}
	}

	return "", nil, 0, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
