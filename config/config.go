package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pharma intelligence backend.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Listen          string `mapstructure:"listen"`
	Debug           bool   `mapstructure:"debug"`
	LogLevel        string `mapstructure:"log_level"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	SearchIndexPath string `mapstructure:"search_index_path"`
}

// LLMConfig contains LLM provider configurations.
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration.
type LLMProvider struct {
	Type    string              `mapstructure:"type"` // openai
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Timeout time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration.
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model each agent tier uses.
type LLMRoutingConfig struct {
	Master    string `mapstructure:"master"`
	SubAgents string `mapstructure:"sub_agents"`
	Fallback  string `mapstructure:"fallback"`
}

// AgentsConfig contains agent execution settings.
type AgentsConfig struct {
	MaxConcurrentAgents int           `mapstructure:"max_concurrent_agents"`
	AgentTimeout        time.Duration `mapstructure:"agent_timeout"`
	MaxToolRounds       int           `mapstructure:"max_tool_rounds"`
}

// SourcesConfig contains upstream API settings for the tool functions.
type SourcesConfig struct {
	NCBIAPIKey          string        `mapstructure:"ncbi_api_key"`
	ClinicalTrialsURL   string        `mapstructure:"clinicaltrials_url"`
	PubMedURL           string        `mapstructure:"pubmed_url"`
	OpenFDAURL          string        `mapstructure:"openfda_url"`
	ChEMBLURL           string        `mapstructure:"chembl_url"`
	PubChemURL          string        `mapstructure:"pubchem_url"`
	ComtradeURL         string        `mapstructure:"comtrade_url"`
	PatentsViewURL      string        `mapstructure:"patentsview_url"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"`
	ToolCacheTTL        time.Duration `mapstructure:"tool_cache_ttl"`
	ToolCacheEnabled    bool          `mapstructure:"tool_cache_enabled"`
	DefaultMaxResults   int           `mapstructure:"default_max_results"`
	DefaultExporterCode string        `mapstructure:"default_exporter_code"`
}

// StorageConfig contains database settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig contains Redis connection settings for the tool cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// DSN builds a Postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

// LoadConfig reads configuration from file and environment.
// Environment variables use the PHARMINTEL_ prefix with dots replaced by underscores.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":10001")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.search_index_path", "data/messages.bleve")
	viper.SetDefault("agents.max_concurrent_agents", 6)
	viper.SetDefault("agents.agent_timeout", 120*time.Second)
	viper.SetDefault("agents.max_tool_rounds", 8)
	viper.SetDefault("sources.clinicaltrials_url", "https://clinicaltrials.gov/api/v2")
	viper.SetDefault("sources.pubmed_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	viper.SetDefault("sources.openfda_url", "https://api.fda.gov")
	viper.SetDefault("sources.chembl_url", "https://www.ebi.ac.uk/chembl/api/data")
	viper.SetDefault("sources.pubchem_url", "https://pubchem.ncbi.nlm.nih.gov/rest/pug")
	viper.SetDefault("sources.comtrade_url", "https://comtrade.un.org/api/get")
	viper.SetDefault("sources.patentsview_url", "https://api.patentsview.org/patents/query")
	viper.SetDefault("sources.request_timeout", 15*time.Second)
	viper.SetDefault("sources.max_retries", 3)
	viper.SetDefault("sources.retry_backoff", 300*time.Millisecond)
	viper.SetDefault("sources.tool_cache_ttl", 10*time.Minute)
	viper.SetDefault("sources.default_max_results", 10)
	viper.SetDefault("sources.default_exporter_code", "699") // Comtrade numeric code for India
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PHARMINTEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// config file is optional; env vars and defaults may carry everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
