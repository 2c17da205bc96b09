package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Gmail      GmailConfig      `yaml:"gmail" mapstructure:"gmail"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	AI         AIConfig         `yaml:"ai" mapstructure:"ai"`
	Entities   EntityConfig     `yaml:"entity_extraction" mapstructure:"entity_extraction"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Engagement EngagementConfig `yaml:"engagement" mapstructure:"engagement"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`

	ESPFingerprintsFile string `yaml:"esp_fingerprints_file" mapstructure:"esp_fingerprints_file"`
	CustomSegmentsFile  string `yaml:"custom_segments_file" mapstructure:"custom_segments_file"`
	KnownEntitiesFile   string `yaml:"known_entities_file" mapstructure:"known_entities_file"`
}

// GmailConfig configures the mail provider adapter.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	TokenFile       string `yaml:"token_file" mapstructure:"token_file"`
	DefaultQuery    string `yaml:"default_query" mapstructure:"default_query"`
}

// StorageConfig configures the database backend. When DatabaseURL is set
// the Postgres store is used; otherwise embedded SQLite at SQLitePath.
type StorageConfig struct {
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AIConfig configures the language-model provider.
type AIConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider"`
	Model           string `yaml:"model" mapstructure:"model"`
	OllamaBaseURL   string `yaml:"ollama_base_url" mapstructure:"ollama_base_url"`
	OllamaAPIKey    string `yaml:"ollama_api_key" mapstructure:"ollama_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key" mapstructure:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url" mapstructure:"openai_base_url"`
	BatchSize       int    `yaml:"batch_size" mapstructure:"batch_size"`
	MaxBodyChars    int    `yaml:"max_body_chars" mapstructure:"max_body_chars"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ModelSpec returns the provider:model tag for the configured model.
func (c AIConfig) ModelSpec() string {
	return c.Provider + ":" + c.Model
}

// EntityConfig configures entity extraction.
type EntityConfig struct {
	TaggerURL          string `yaml:"tagger_url" mapstructure:"tagger_url"`
	SpacyModel         string `yaml:"spacy_model" mapstructure:"spacy_model"`
	ExtractMonetary    bool   `yaml:"extract_monetary" mapstructure:"extract_monetary"`
	ExtractDates       bool   `yaml:"extract_dates" mapstructure:"extract_dates"`
	ExtractProcurement bool   `yaml:"extract_procurement" mapstructure:"extract_procurement"`
}

// ScoringWeights holds the point values of the scoring formula.
type ScoringWeights struct {
	InboundInitiation  int `yaml:"inbound_initiation" mapstructure:"inbound_initiation"`
	InboundEngagement  int `yaml:"inbound_engagement" mapstructure:"inbound_engagement"`
	Reachability       int `yaml:"reachability" mapstructure:"reachability"`
	Relevance          int `yaml:"relevance" mapstructure:"relevance"`
	Recency            int `yaml:"recency" mapstructure:"recency"`
	KnownContacts      int `yaml:"known_contacts" mapstructure:"known_contacts"`
	MonetarySignals    int `yaml:"monetary_signals" mapstructure:"monetary_signals"`
	GemDiversityPer    int `yaml:"gem_diversity_per_type" mapstructure:"gem_diversity_per_type"`
	GemDiversityCap    int `yaml:"gem_diversity_cap" mapstructure:"gem_diversity_cap"`
	DormantThreadBonus int `yaml:"dormant_thread_bonus" mapstructure:"dormant_thread_bonus"`
	PartnerBonus       int `yaml:"partner_bonus" mapstructure:"partner_bonus"`
	ProcurementBonus   int `yaml:"procurement_bonus" mapstructure:"procurement_bonus"`
}

// DormantThreadConfig bounds the dormant-thread detector.
type DormantThreadConfig struct {
	MinDormancyDays    int  `yaml:"min_dormancy_days" mapstructure:"min_dormancy_days"`
	MaxDormancyDays    int  `yaml:"max_dormancy_days" mapstructure:"max_dormancy_days"`
	RequireHumanSender bool `yaml:"require_human_sender" mapstructure:"require_human_sender"`
}

// ScoringConfig configures gem scoring.
type ScoringConfig struct {
	TargetIndustries []string            `yaml:"target_industries" mapstructure:"target_industries"`
	Weights          ScoringWeights      `yaml:"weights" mapstructure:"weights"`
	DormantThread    DormantThreadConfig `yaml:"dormant_thread" mapstructure:"dormant_thread"`
	RelationshipCaps map[string]int      `yaml:"relationship_caps" mapstructure:"relationship_caps"`
}

// CapFor returns the score cap for a relationship type.
func (c ScoringConfig) CapFor(rel string) int {
	if cap, ok := c.RelationshipCaps[rel]; ok {
		return cap
	}
	return 60
}

// EngagementConfig describes the user for draft generation.
type EngagementConfig struct {
	YourName            string   `yaml:"your_name" mapstructure:"your_name"`
	YourService         string   `yaml:"your_service" mapstructure:"your_service"`
	YourTone            string   `yaml:"your_tone" mapstructure:"your_tone"`
	YourAudience        string   `yaml:"your_audience" mapstructure:"your_audience"`
	PreferredStrategies []string `yaml:"preferred_strategies" mapstructure:"preferred_strategies"`
	MaxOutreachPerDay   int      `yaml:"max_outreach_per_day" mapstructure:"max_outreach_per_day"`
}

// NotionConfig holds the Notion export target.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	GemsDB string `yaml:"gems_db" mapstructure:"gems_db"`
}

// SalesforceConfig holds Salesforce credentials for lead export.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file: GEMSIEVE_CONFIG wins, else ./config.yaml, else
	// ~/.config/gemsieve/config.yaml.
	if path := os.Getenv("GEMSIEVE_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/gemsieve")
		}
	}

	// Environment
	v.SetEnvPrefix("GEMSIEVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("gmail.credentials_file", "credentials.json")
	v.SetDefault("gmail.token_file", "token.json")
	v.SetDefault("gmail.default_query", "newer_than:1y")
	v.SetDefault("storage.sqlite_path", "gemsieve.db")
	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.model", "mistral-nemo")
	v.SetDefault("ai.ollama_base_url", "http://localhost:11434")
	v.SetDefault("ai.openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.batch_size", 10)
	v.SetDefault("ai.max_body_chars", 2000)
	v.SetDefault("ai.timeout_secs", 60)
	v.SetDefault("entity_extraction.spacy_model", "en_core_web_sm")
	v.SetDefault("entity_extraction.extract_monetary", true)
	v.SetDefault("entity_extraction.extract_dates", true)
	v.SetDefault("entity_extraction.extract_procurement", true)
	v.SetDefault("scoring.target_industries", []string{
		"SaaS", "Agency", "E-commerce", "Marketing", "Developer Tools",
	})
	v.SetDefault("scoring.weights.inbound_initiation", 15)
	v.SetDefault("scoring.weights.inbound_engagement", 15)
	v.SetDefault("scoring.weights.reachability", 10)
	v.SetDefault("scoring.weights.relevance", 8)
	v.SetDefault("scoring.weights.recency", 8)
	v.SetDefault("scoring.weights.known_contacts", 7)
	v.SetDefault("scoring.weights.monetary_signals", 7)
	v.SetDefault("scoring.weights.gem_diversity_per_type", 5)
	v.SetDefault("scoring.weights.gem_diversity_cap", 15)
	v.SetDefault("scoring.weights.dormant_thread_bonus", 10)
	v.SetDefault("scoring.weights.partner_bonus", 3)
	v.SetDefault("scoring.weights.procurement_bonus", 7)
	v.SetDefault("scoring.dormant_thread.min_dormancy_days", 14)
	v.SetDefault("scoring.dormant_thread.max_dormancy_days", 365)
	v.SetDefault("scoring.dormant_thread.require_human_sender", true)
	v.SetDefault("scoring.relationship_caps", map[string]int{
		"inbound_prospect":    100,
		"warm_contact":        90,
		"potential_partner":   80,
		"community":           50,
		"unknown":             60,
		"selling_to_me":       20,
		"my_vendor":           25,
		"my_service_provider": 15,
		"my_infrastructure":   5,
		"institutional":       5,
	})
	v.SetDefault("engagement.your_tone", "direct, technical, peer-to-peer")
	v.SetDefault("engagement.preferred_strategies", []string{
		"audit", "mirror", "revival", "partner",
	})
	v.SetDefault("engagement.max_outreach_per_day", 20)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("esp_fingerprints_file", "esp_rules.yaml")
	v.SetDefault("custom_segments_file", "segments.yaml")
	v.SetDefault("known_entities_file", "known_entities.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides honors the bare env vars carried over from earlier
// deployments alongside the GEMSIEVE_* prefix.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("ollama_host"); v != "" {
		cfg.AI.OllamaBaseURL = v
	}
	if v := os.Getenv("ollama_api_key"); v != "" {
		cfg.AI.OllamaAPIKey = v
	}
	if v := os.Getenv("model_name"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AI.AnthropicAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIAPIKey = v
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
