package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the trajectory generator
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Generation GenerationConfig `mapstructure:"generation"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Output     OutputConfig     `mapstructure:"output"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig selects the completion backend and its retry policy.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"` // anthropic, openai
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Provider)) {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider must be anthropic or openai, got %q", l.Provider)
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	if l.RetryDelay < 0 {
		return fmt.Errorf("llm.retry_delay cannot be negative")
	}
	return nil
}

// GenerationConfig bounds the trajectory loop and its sampling parameters.
type GenerationConfig struct {
	MaxIterations     int           `mapstructure:"max_iterations"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	Concurrency       int           `mapstructure:"concurrency"`
	TrajectoryTimeout time.Duration `mapstructure:"trajectory_timeout"`
}

// Normalize applies defaults for unset generation values.
func (g GenerationConfig) Normalize() GenerationConfig {
	if g.MaxIterations <= 0 {
		g.MaxIterations = 3
	}
	if g.MaxTokens <= 0 {
		g.MaxTokens = 1000
	}
	if g.Temperature < 0 {
		g.Temperature = 0
	}
	if g.Concurrency <= 0 {
		g.Concurrency = 1
	}
	return g
}

// ToolsConfig points at the tool catalog source.
type ToolsConfig struct {
	DefinitionsFile string `mapstructure:"definitions_file"`
	SigningSecret   string `mapstructure:"signing_secret"`
}

// RetrievalConfig controls the knowledge index and chunking.
type RetrievalConfig struct {
	IndexPath     string `mapstructure:"index_path"`
	SearchTopK    int    `mapstructure:"search_top_k"`
	ChunkSize     int    `mapstructure:"chunk_size"`
	ChunkOverlap  int    `mapstructure:"chunk_overlap"`
	MinChunkChars int    `mapstructure:"min_chunk_chars"`
	Hybrid        bool   `mapstructure:"hybrid"`
}

func (r RetrievalConfig) Validate() error {
	if r.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be > 0")
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be in [0, chunk_size)")
	}
	if r.SearchTopK <= 0 {
		return fmt.Errorf("retrieval.search_top_k must be > 0")
	}
	return nil
}

// OutputConfig controls how training examples are serialized.
type OutputConfig struct {
	Format string       `mapstructure:"format"` // jsonl, json
	Fields OutputFields `mapstructure:"fields"`
}

// OutputFields renames the four primary record fields.
type OutputFields struct {
	Query    string `mapstructure:"query"`
	COT      string `mapstructure:"cot"`
	Tools    string `mapstructure:"tools"`
	Decision string `mapstructure:"decision"`
}

// Normalize fills in the default record field names.
func (o OutputConfig) Normalize() OutputConfig {
	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	if o.Format == "" {
		o.Format = "jsonl"
	}
	if strings.TrimSpace(o.Fields.Query) == "" {
		o.Fields.Query = "Q"
	}
	if strings.TrimSpace(o.Fields.COT) == "" {
		o.Fields.COT = "COT"
	}
	if strings.TrimSpace(o.Fields.Tools) == "" {
		o.Fields.Tools = "Tool Set"
	}
	if strings.TrimSpace(o.Fields.Decision) == "" {
		o.Fields.Decision = "Decision"
	}
	return o
}

func (o OutputConfig) Validate() error {
	if o.Format != "jsonl" && o.Format != "json" {
		return fmt.Errorf("output.format must be jsonl or json, got %q", o.Format)
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPort int    `mapstructure:"metrics_port"`
	LogFile     string `mapstructure:"log_file"`
	// OTLPEndpoint is the OTLP/HTTP collector (host:port) for traces.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	StateBackend string         `mapstructure:"state_backend"` // memory, redis
	Redis        RedisConfig    `mapstructure:"redis"`
	File         FileConfig     `mapstructure:"file"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
}

func (s StorageConfig) Validate() error {
	switch s.StateBackend {
	case "memory":
	case "redis":
		if err := s.Redis.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.state_backend must be memory or redis, got %q", s.StateBackend)
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Configured reports whether a Redis host was provided.
func (r RedisConfig) Configured() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// FileConfig contains file storage settings
type FileConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Configured reports whether Postgres was configured at all.
func (p PostgresConfig) Configured() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// PipelineConfig drives the end-to-end transform+generate pipeline.
type PipelineConfig struct {
	Schedule    string `mapstructure:"schedule"` // cron expression, empty disables
	QueriesFile string `mapstructure:"queries_file"`
	OutputDir   string `mapstructure:"output_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.default_timeout", 2*time.Minute)
	v.SetDefault("server.address", ":10001")
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", 2*time.Second)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("generation.max_iterations", 3)
	v.SetDefault("generation.max_tokens", 1000)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.concurrency", 1)
	v.SetDefault("generation.trajectory_timeout", 5*time.Minute)
	v.SetDefault("tools.definitions_file", "config/tools.json")
	v.SetDefault("retrieval.index_path", "data/index.bleve")
	v.SetDefault("retrieval.search_top_k", 3)
	v.SetDefault("retrieval.chunk_size", 4000)
	v.SetDefault("retrieval.chunk_overlap", 200)
	v.SetDefault("retrieval.min_chunk_chars", 50)
	v.SetDefault("retrieval.hybrid", false)
	v.SetDefault("output.format", "jsonl")
	v.SetDefault("output.fields.query", "Q")
	v.SetDefault("output.fields.cot", "COT")
	v.SetDefault("output.fields.tools", "Tool Set")
	v.SetDefault("output.fields.decision", "Decision")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("storage.state_backend", "memory")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.file.data_dir", "data")
	v.SetDefault("pipeline.output_dir", "data/output")
}

// LoadConfig reads configuration from path (or the default search paths),
// overlays TRAJGEN_* environment variables and validates the result.
// A missing config file is not an error; defaults and env apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("TRAJGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Generation = cfg.Generation.Normalize()
	cfg.Output = cfg.Output.Normalize()
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Storage.StateBackend = strings.ToLower(strings.TrimSpace(cfg.Storage.StateBackend))

	for _, validate := range []func() error{
		cfg.LLM.Validate,
		cfg.Retrieval.Validate,
		cfg.Output.Validate,
		cfg.Telemetry.Validate,
		cfg.Storage.Validate,
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
