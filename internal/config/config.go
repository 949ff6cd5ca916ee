package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jacksonlee411/tableform/internal/validation"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

const (
	envPrefix      = "TABLEFORM"
	configFileName = "tableform"
)

type Config struct {
	ConfigFile string `mapstructure:"config"`

	HTTPAddr  string `mapstructure:"http-addr" validate:"required"`
	LogLevel  string `mapstructure:"log-level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log-format" validate:"oneof=json console"`

	StoreDriver string `mapstructure:"store-driver" validate:"oneof=memory postgres sqlite"`
	DatabaseURL string `mapstructure:"database-url" validate:"required_if=StoreDriver postgres"`
	SQLitePath  string `mapstructure:"sqlite-path" validate:"required_if=StoreDriver sqlite"`

	AllowlistPath   string        `mapstructure:"allowlist-path" validate:"required"`
	AuthzModelPath  string        `mapstructure:"authz-model-path" validate:"required"`
	AuthzPolicyPath string        `mapstructure:"authz-policy-path" validate:"required"`
	AuthzMode       string        `mapstructure:"authz-mode" validate:"oneof=enforce shadow disabled"`
	AuthzAllowOff   bool          `mapstructure:"authz-allow-disabled"`
	SessionTTL      time.Duration `mapstructure:"session-ttl" validate:"gt=0"`
	PublicBaseURL   string        `mapstructure:"public-base-url" validate:"required,url"`

	AirtableClientID          string        `mapstructure:"airtable-client-id"`
	AirtableClientSecret      string        `mapstructure:"airtable-client-secret"`
	AirtableRedirectURL       string        `mapstructure:"airtable-redirect-url"`
	AirtableAPIURL            string        `mapstructure:"airtable-api-url" validate:"required,url"`
	AirtableAuthURL           string        `mapstructure:"airtable-auth-url" validate:"required,url"`
	AirtableTokenURL          string        `mapstructure:"airtable-token-url" validate:"required,url"`
	AirtableRequestsPerSecond int           `mapstructure:"airtable-requests-per-second" validate:"min=1,max=50"`
	AirtableSchemaCacheTTL    time.Duration `mapstructure:"airtable-schema-cache-ttl"`
	AirtableMaxRetries        int           `mapstructure:"airtable-max-retries" validate:"min=0,max=10"`

	LogicUnsetRules string `mapstructure:"logic-unset-rules" validate:"oneof=false true fail pass"`
}

// UnsetRules is the single visibility policy for rules that are not filled
// in yet; builder preview and public filling both use it.
func (c Config) UnsetRules() formlogic.UnsetRuleResult {
	u, _ := formlogic.ParseUnsetRuleResult(c.LogicUnsetRules)
	return u
}

func (c Config) AirtableRedirect() string {
	if strings.TrimSpace(c.AirtableRedirectURL) != "" {
		return c.AirtableRedirectURL
	}
	return strings.TrimRight(c.PublicBaseURL, "/") + "/auth/airtable/callback"
}

// SetFlags registers every key with its default on fs.
func SetFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a yaml config file (default ./tableform.yaml if present)")
	fs.String("http-addr", ":8080", "listen address")
	fs.String("log-level", "info", "log level (debug|info|warn|error)")
	fs.String("log-format", "json", "log format (json|console)")
	fs.String("store-driver", "memory", "document store (memory|postgres|sqlite)")
	fs.String("database-url", "", "postgres connection string")
	fs.String("sqlite-path", "tableform.db", "sqlite database file")
	fs.String("allowlist-path", "config/routing/allowlist.yaml", "route allowlist")
	fs.String("authz-model-path", "config/access/model.conf", "casbin model")
	fs.String("authz-policy-path", "config/access/policy.csv", "casbin policy")
	fs.String("authz-mode", "enforce", "authorization mode (enforce|shadow|disabled)")
	fs.Bool("authz-allow-disabled", false, "permit authz-mode=disabled")
	fs.Duration("session-ttl", 12*time.Hour, "owner session lifetime")
	fs.String("public-base-url", "http://localhost:8080", "externally visible base url")
	fs.String("airtable-client-id", "", "Airtable OAuth client id")
	fs.String("airtable-client-secret", "", "Airtable OAuth client secret")
	fs.String("airtable-redirect-url", "", "OAuth redirect url (default <public-base-url>/auth/airtable/callback)")
	fs.String("airtable-api-url", "https://api.airtable.com", "Airtable REST API base url")
	fs.String("airtable-auth-url", "https://airtable.com/oauth2/v1/authorize", "Airtable OAuth authorize url")
	fs.String("airtable-token-url", "https://airtable.com/oauth2/v1/token", "Airtable OAuth token url")
	fs.Int("airtable-requests-per-second", 5, "Airtable API requests per second")
	fs.Duration("airtable-schema-cache-ttl", 5*time.Minute, "table schema cache lifetime (0 disables)")
	fs.Int("airtable-max-retries", 3, "retries on throttled requests")
	fs.String("logic-unset-rules", "false", "result of incomplete visibility rules (false|true)")
}

// Load reads .env, the optional yaml file, TABLEFORM_* variables and cmd's
// flags, in increasing precedence.
func Load(cmd *cobra.Command) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		return Config{}, err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if errs := validation.Validate(c); errs != nil {
		return fmt.Errorf("config: %s", validation.Summary(errs))
	}
	return nil
}
